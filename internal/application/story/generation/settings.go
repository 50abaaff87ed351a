package generation

import (
	"fmt"

	"storyteller-api/internal/application/story/model"
	"storyteller-api/internal/application/story/prompt"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	apperrors "storyteller-api/pkg/errors"
)

// 显式目标字数的取值范围
const (
	MinTargetWords = 100
	MaxTargetWords = 5000
)

// Request 单次生成请求，零值字段沿用故事设置
type Request struct {
	Guidance     string              `json:"guidance,omitempty"`
	Preset       entity.WordPreset   `json:"target_word_preset,omitempty"`
	TargetWords  int                 `json:"target_words,omitempty"`
	Temperature  *float64            `json:"temperature,omitempty"`
	WritingStyle entity.WritingStyle `json:"writing_style,omitempty"`
	Mood         entity.Mood         `json:"mood,omitempty"`
	Pacing       entity.Pacing       `json:"pacing,omitempty"`
	UseAlternate bool                `json:"use_alternate,omitempty"`
}

// Validate 校验请求中给出的设置；零值字段不校验
func (r *Request) Validate() error {
	switch {
	case r.Preset != "" && !r.Preset.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid target_word_preset: " + string(r.Preset))
	case r.WritingStyle != "" && !r.WritingStyle.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid writing_style: " + string(r.WritingStyle))
	case r.Mood != "" && !r.Mood.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid mood: " + string(r.Mood))
	case r.Pacing != "" && !r.Pacing.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid pacing: " + string(r.Pacing))
	case r.Temperature != nil && (*r.Temperature < entity.MinTemperature || *r.Temperature > entity.MaxTemperature):
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("temperature must be within [%.1f, %.1f]", entity.MinTemperature, entity.MaxTemperature))
	case r.TargetWords != 0 && (r.TargetWords < MinTargetWords || r.TargetWords > MaxTargetWords):
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("target_words must be within [%d, %d]", MinTargetWords, MaxTargetWords))
	}
	return nil
}

// Defaults 系统级默认值
type Defaults struct {
	Preset      entity.WordPreset
	Temperature float64
}

// DefaultsFromConfig 由配置得到系统默认值，目标字数映射到最接近的档位
func DefaultsFromConfig(cfg *config.Config) Defaults {
	d := Defaults{Preset: entity.DefaultWordPreset, Temperature: entity.DefaultTemperature}
	if cfg == nil {
		return d
	}
	if cfg.Generation.Temperature > 0 {
		d.Temperature = cfg.Generation.Temperature
	}
	if w := cfg.Generation.EpisodeTargetWords; w > 0 {
		d.Preset = nearestPreset(w)
	}
	return d
}

// Settings 本次生成生效的完整设置
type Settings struct {
	Preset      entity.WordPreset
	TargetWords int
	Temperature float64
	Style       model.Style
	Role        entity.ProviderRole
}

// ResolveSettings 按 请求 > 故事 > 系统默认 的顺序解析设置，结果不含空值。
// req 须已通过 Validate；故事中存量的非法取值回落到默认值，温度截断到合法区间。
func ResolveSettings(req Request, story *entity.Story, defaults Defaults) Settings {
	if !defaults.Preset.IsValid() {
		defaults.Preset = entity.DefaultWordPreset
	}
	if defaults.Temperature <= 0 {
		defaults.Temperature = entity.DefaultTemperature
	}
	if story == nil {
		story = &entity.Story{}
	}

	s := Settings{
		Preset:      firstValid(defaults.Preset, req.Preset, story.TargetWordPreset),
		Temperature: defaults.Temperature,
		Style: model.Style{
			WritingStyle: firstValid(entity.DefaultWritingStyle, req.WritingStyle, story.WritingStyle),
			Mood:         firstValid(entity.DefaultMood, req.Mood, story.Mood),
			Pacing:       firstValid(entity.DefaultPacing, req.Pacing, story.Pacing),
		},
		Role: entity.ProviderRoleDefault,
	}

	switch {
	case req.Temperature != nil:
		s.Temperature = *req.Temperature
	case story.Temperature > 0:
		s.Temperature = clamp(story.Temperature, entity.MinTemperature, entity.MaxTemperature)
	}

	s.TargetWords = prompt.TargetWords(s.Preset)
	if req.TargetWords > 0 {
		// 显式字数覆盖档位目标，档位取最接近的一档以匹配结构要求
		s.TargetWords = req.TargetWords
		if req.Preset == "" {
			s.Preset = nearestPreset(req.TargetWords)
		}
	}

	if req.UseAlternate {
		s.Role = entity.ProviderRoleAlternate
	}
	return s
}

type validator interface {
	comparable
	IsValid() bool
}

func firstValid[T validator](fallback T, candidates ...T) T {
	for _, c := range candidates {
		if c.IsValid() {
			return c
		}
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nearestPreset 距离相同时取较长的一档
func nearestPreset(words int) entity.WordPreset {
	best := entity.DefaultWordPreset
	bestDiff := -1
	for _, p := range []entity.WordPreset{entity.WordPresetShort, entity.WordPresetMedium, entity.WordPresetLong, entity.WordPresetEpic} {
		diff := prompt.TargetWords(p) - words
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff <= bestDiff {
			best, bestDiff = p, diff
		}
	}
	return best
}
