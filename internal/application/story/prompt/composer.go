// Package prompt 组装剧集生成、标题与摘要所用的提示词。
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"storyteller-api/internal/application/story/model"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/pkg/logger"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// TemplateID 模板标识
type TemplateID string

const (
	TemplateSystem       TemplateID = "system"
	TemplateUserFirst    TemplateID = "user_first"
	TemplateUserContinue TemplateID = "user_continue"
	TemplateLength       TemplateID = "length"
	TemplateTitle        TemplateID = "title"
	TemplateSummary      TemplateID = "summary"
)

// titleContentLimit 标题提示词只截取正文开头
const titleContentLimit = 1500

// Composer 提示词组装器，模板按需加载后缓存
type Composer struct {
	mu    sync.RWMutex
	cache map[TemplateID]einoprompt.ChatTemplate
}

// NewComposer 创建提示词组装器
func NewComposer() *Composer {
	return &Composer{cache: make(map[TemplateID]einoprompt.ChatTemplate)}
}

func (c *Composer) template(id TemplateID) (einoprompt.ChatTemplate, error) {
	c.mu.RLock()
	if tpl, ok := c.cache[id]; ok {
		c.mu.RUnlock()
		return tpl, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if tpl, ok := c.cache[id]; ok {
		return tpl, nil
	}

	b, err := templatesFS.ReadFile("templates/" + string(id) + ".txt")
	if err != nil {
		return nil, fmt.Errorf("read prompt template %s: %w", id, err)
	}
	tpl := einoprompt.FromMessages(schema.FString, schema.UserMessage(strings.TrimSuffix(string(b), "\n")))
	c.cache[id] = tpl
	return tpl, nil
}

func (c *Composer) render(ctx context.Context, id TemplateID, vars map[string]any) (string, error) {
	tpl, err := c.template(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt template %s: %w", id, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt template %s rendered nothing", id)
	}
	return msgs[0].Content, nil
}

// SystemPrompt 构建系统提示词：场景、角色、写作准则，以及非默认风格轴的配置段
func (c *Composer) SystemPrompt(ctx context.Context, sc *model.StoryContext, style model.Style) (string, error) {
	s := sc.Scenario
	vars := map[string]any{
		"name":          orDefault(s.Name, "Untitled"),
		"setting":       orDefault(s.Setting, "Not specified"),
		"time_period":   orDefault(s.TimePeriod, "Not specified"),
		"genre":         orDefault(s.Genre, "General fiction"),
		"tone":          orDefault(s.Tone, "Neutral"),
		"premise":       orDefault(s.Premise, "Not specified"),
		"themes":        orDefault(joinNonEmpty(s.Themes, ", ", ""), "Not specified"),
		"world_rules":   orDefault(joinNonEmpty(s.WorldRules, "\n", "- "), "Standard reality"),
		"characters":    characterRoster(sc.Characters),
		"style_section": "",
	}
	if section := StyleSection(style); section != "" {
		vars["style_section"] = "\n\n" + section
	}

	out, err := c.render(ctx, TemplateSystem, vars)
	if err != nil {
		return "", err
	}
	logger.Debug(ctx, "system prompt composed", "chars", len(out))
	return out, nil
}

// UserPrompt 构建用户提示词。
// 第一集只给开篇指令；后续剧集按 faded → background → active 顺序给出记忆层。
func (c *Composer) UserPrompt(ctx context.Context, sc *model.StoryContext, preset entity.WordPreset, targetWords int, guidance string) (string, error) {
	length, err := c.LengthRequirements(ctx, preset, targetWords)
	if err != nil {
		return "", err
	}

	vars := map[string]any{
		"length":   length,
		"guidance": "",
	}
	if g := strings.TrimSpace(guidance); g != "" {
		vars["guidance"] = "\n\n## Author's Guidance for This Episode\n" + g +
			"\n\nIncorporate this guidance into the episode while maintaining narrative flow."
	}

	if sc.IsFirstEpisode() {
		return c.render(ctx, TemplateUserFirst, vars)
	}

	vars["memory"] = MemoryBlock(sc)
	vars["episode_number"] = strconv.Itoa(sc.NextEpisodeNumber)
	return c.render(ctx, TemplateUserContinue, vars)
}

// LengthRequirements 篇幅要求段。
// 目标与 target×1.2 的硬上限取生效的目标字数，档位只决定场景与段落结构；
// targetWords 不大于 0 时使用档位目标。
func (c *Composer) LengthRequirements(ctx context.Context, preset entity.WordPreset, targetWords int) (string, error) {
	lp := LookupPreset(preset)
	if targetWords <= 0 {
		targetWords = lp.TargetWords
	}
	return c.render(ctx, TemplateLength, map[string]any{
		"target_words": strconv.Itoa(targetWords),
		"preset":       string(lp.Preset),
		"scenes":       lp.Scenes,
		"paragraphs":   lp.Paragraphs,
		"instruction":  lp.Instruction,
		"max_words":    strconv.Itoa(MaxWords(targetWords)),
	})
}

// TitlePrompt 标题生成提示词，只取正文前 1500 个字符
func (c *Composer) TitlePrompt(ctx context.Context, content string) (string, error) {
	return c.render(ctx, TemplateTitle, map[string]any{"content": truncateRunes(content, titleContentLimit)})
}

// SummaryPrompt 摘要生成提示词
func (c *Composer) SummaryPrompt(ctx context.Context, content string) (string, error) {
	return c.render(ctx, TemplateSummary, map[string]any{"content": content})
}

// MemoryBlock 按 faded → background → active 拼接非空记忆层
func MemoryBlock(sc *model.StoryContext) string {
	parts := make([]string, 0, 3)
	if sc.FadedMemory != "" {
		parts = append(parts, "## Story Background (Key Facts)\n"+sc.FadedMemory)
	}
	if sc.BackgroundMemory != "" {
		parts = append(parts, "## Previous Episodes (Summaries)\n"+sc.BackgroundMemory)
	}
	if sc.ActiveMemory != "" {
		parts = append(parts, "## Recent Episodes (Full Text)\n"+sc.ActiveMemory)
	}
	return strings.Join(parts, "\n\n")
}

// StyleSection 非默认风格轴各输出一行；三轴均为默认值时返回空串
func StyleSection(style model.Style) string {
	var lines []string
	if style.WritingStyle != "" && style.WritingStyle != entity.WritingStyleBalanced {
		if ins, ok := styleInstructions[style.WritingStyle]; ok {
			lines = append(lines, "**Writing Style**: "+ins)
		}
	}
	if style.Mood != "" && style.Mood != entity.MoodModerate {
		if ins, ok := moodInstructions[style.Mood]; ok {
			lines = append(lines, "**Mood**: "+ins)
		}
	}
	if style.Pacing != "" && style.Pacing != entity.PacingModerate {
		if ins, ok := pacingInstructions[style.Pacing]; ok {
			lines = append(lines, "**Pacing**: "+ins)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "## Story Style Configuration\n\n" + strings.Join(lines, "\n")
}

func characterRoster(chars []entity.CharacterState) string {
	if len(chars) == 0 {
		return "No characters defined."
	}
	lines := make([]string, 0, len(chars))
	for _, ch := range chars {
		var b strings.Builder
		fmt.Fprintf(&b, "- %s (%s): %s", ch.Name, ch.Role, orDefault(ch.Description, "No description"))
		if ch.Personality != "" {
			b.WriteString("\n  Personality: " + ch.Personality)
		}
		if ch.Motivations != "" {
			b.WriteString("\n  Motivations: " + ch.Motivations)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinNonEmpty(items []string, sep, prefix string) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, prefix+it)
		}
	}
	return strings.Join(out, sep)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
