package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller-api/internal/application/story/model"
	"storyteller-api/internal/domain/entity"
)

func sampleContext(next int) *model.StoryContext {
	return &model.StoryContext{
		StoryID: "s1",
		Scenario: model.ScenarioContext{
			Name:       "The Salt Road",
			Setting:    "A desert caravan route",
			Genre:      "Adventure",
			Themes:     []string{"trust", "survival"},
			WorldRules: []string{"Water is currency", "Nobody travels at noon"},
		},
		Characters: []entity.CharacterState{
			{Name: "Ada", Role: "protagonist", Description: "A cartographer", Personality: "Stubborn"},
			{Name: "Bram", Role: "antagonist", Motivations: "Control the wells"},
		},
		FadedMemory:       "- Ada left home.",
		BackgroundMemory:  "Episode 2: Ada met Bram.",
		ActiveMemory:      "=== Episode 3: Dunes ===\nThe wind rose.",
		EpisodeCount:      next - 1,
		NextEpisodeNumber: next,
	}
}

func TestComposer_SystemPrompt(t *testing.T) {
	c := NewComposer()
	out, err := c.SystemPrompt(context.Background(), sampleContext(4), model.DefaultStyle())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "You are a skilled fiction writer crafting an episodic story."))
	assert.Contains(t, out, "**Title**: The Salt Road")
	assert.Contains(t, out, "**Time Period**: Not specified")
	assert.Contains(t, out, "**Tone**: Neutral")
	assert.Contains(t, out, "**Themes**: trust, survival")
	assert.Contains(t, out, "## World Rules\n- Water is currency\n- Nobody travels at noon\n")
	assert.Contains(t, out, "- Ada (protagonist): A cartographer\n  Personality: Stubborn\n- Bram (antagonist): No description\n  Motivations: Control the wells")
	assert.NotContains(t, out, "Story Style Configuration")
	assert.True(t, strings.HasSuffix(out, "## Important\n- Stay true to character personalities and motivations\n- Respect established world rules and setting details\n- Build on events from previous episodes\n- Create engaging narrative tension"))
}

func TestComposer_SystemPrompt_EmptyScenario(t *testing.T) {
	c := NewComposer()
	out, err := c.SystemPrompt(context.Background(), &model.StoryContext{NextEpisodeNumber: 1}, model.DefaultStyle())
	require.NoError(t, err)

	assert.Contains(t, out, "**Title**: Untitled")
	assert.Contains(t, out, "**Genre**: General fiction")
	assert.Contains(t, out, "## World Rules\nStandard reality")
	assert.Contains(t, out, "## Characters\nNo characters defined.")
}

func TestStyleSection(t *testing.T) {
	assert.Empty(t, StyleSection(model.DefaultStyle()))
	assert.Empty(t, StyleSection(model.Style{}))

	tests := []struct {
		name  string
		style model.Style
		line  string
	}{
		{"style", model.Style{WritingStyle: entity.WritingStyleAction, Mood: entity.MoodModerate, Pacing: entity.PacingModerate}, "**Writing Style**: " + styleInstructions[entity.WritingStyleAction]},
		{"mood", model.Style{WritingStyle: entity.WritingStyleBalanced, Mood: entity.MoodDark, Pacing: entity.PacingModerate}, "**Mood**: " + moodInstructions[entity.MoodDark]},
		{"pacing", model.Style{WritingStyle: entity.WritingStyleBalanced, Mood: entity.MoodModerate, Pacing: entity.PacingFast}, "**Pacing**: " + pacingInstructions[entity.PacingFast]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := StyleSection(tt.style)
			assert.Equal(t, "## Story Style Configuration\n\n"+tt.line, section)
		})
	}

	all := StyleSection(model.Style{WritingStyle: entity.WritingStyleDialogue, Mood: entity.MoodLight, Pacing: entity.PacingSlow})
	assert.Len(t, strings.Split(strings.TrimPrefix(all, "## Story Style Configuration\n\n"), "\n"), 3)
}

func TestComposer_SystemPrompt_StyleBlockPlacement(t *testing.T) {
	c := NewComposer()
	out, err := c.SystemPrompt(context.Background(), sampleContext(2), model.Style{
		WritingStyle: entity.WritingStyleBalanced, Mood: entity.MoodIntense, Pacing: entity.PacingModerate,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "(settings, character traits, emotions)\n\n## Story Style Configuration\n\n**Mood**: Heighten emotional stakes. Characters feel things deeply.\n\n## Important\n")
	assert.Equal(t, 1, strings.Count(out, "**Mood**:"))
}

func TestComposer_UserPrompt_FirstEpisode(t *testing.T) {
	c := NewComposer()
	out, err := c.UserPrompt(context.Background(), &model.StoryContext{NextEpisodeNumber: 1}, entity.WordPresetShort, 0, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Write the first episode of this story.\n\n"))
	assert.Contains(t, out, "- Target: approximately 750 words (short episode)")
	assert.Contains(t, out, "- Structure: 1-2 scenes, 8-12 paragraphs")
	assert.Contains(t, out, "- Do NOT exceed 900 words")
	assert.NotContains(t, out, "## Story Context")
	assert.NotContains(t, out, "Author's Guidance")
	assert.True(t, strings.HasSuffix(out, "The first word must be story content. Begin:"))
}

func TestComposer_UserPrompt_Continuation(t *testing.T) {
	c := NewComposer()
	out, err := c.UserPrompt(context.Background(), sampleContext(4), entity.WordPresetEpic, 3000, "  Bram betrays Ada.  ")
	require.NoError(t, err)

	faded := strings.Index(out, "## Story Background (Key Facts)\n- Ada left home.")
	background := strings.Index(out, "## Previous Episodes (Summaries)\nEpisode 2: Ada met Bram.")
	active := strings.Index(out, "## Recent Episodes (Full Text)\n=== Episode 3: Dunes ===")
	require.True(t, faded > 0 && background > faded && active > background, "tiers out of order")

	assert.Contains(t, out, "Write Episode 4 of this story.")
	assert.Contains(t, out, "- Target: approximately 3000 words (epic episode)")
	assert.Contains(t, out, "- Do NOT exceed 3600 words")
	assert.Contains(t, out, "## Author's Guidance for This Episode\nBram betrays Ada.\n\nIncorporate this guidance")
	assert.True(t, strings.HasSuffix(out, "Begin:"))
}

func TestComposer_LengthRequirements_ExplicitTarget(t *testing.T) {
	c := NewComposer()
	out, err := c.LengthRequirements(context.Background(), entity.WordPresetMedium, 1000)
	require.NoError(t, err)

	assert.Contains(t, out, "- Target: approximately 1000 words (medium episode)")
	assert.Contains(t, out, "- Structure: 2-3 scenes, 15-20 paragraphs")
	assert.Contains(t, out, "- Do NOT exceed 1200 words")
	assert.NotContains(t, out, "1250")
}

func TestMemoryBlock_SkipsEmptyTiers(t *testing.T) {
	sc := &model.StoryContext{ActiveMemory: "A"}
	assert.Equal(t, "## Recent Episodes (Full Text)\nA", MemoryBlock(sc))
}

func TestComposer_TitleAndSummaryPrompts(t *testing.T) {
	c := NewComposer()
	long := strings.Repeat("x", 2000)

	title, err := c.TitlePrompt(context.Background(), long)
	require.NoError(t, err)
	assert.Contains(t, title, "(3-6 words)")
	assert.Contains(t, title, "Episode:\n"+strings.Repeat("x", 1500)+"...\n\nTitle:")
	assert.NotContains(t, title, strings.Repeat("x", 1501))

	summary, err := c.SummaryPrompt(context.Background(), "Body {with braces}.")
	require.NoError(t, err)
	assert.Equal(t, "Summarize the following story episode in 2-3 concise sentences.\n"+
		"Focus on: key plot developments, character actions/decisions, and important revelations.\n\n"+
		"Episode:\nBody {with braces}.\n\nSummary:", summary)
}

func TestPresetsAndBudget(t *testing.T) {
	assert.Equal(t, 750, TargetWords(entity.WordPresetShort))
	assert.Equal(t, 1250, TargetWords("unknown"))
	assert.Equal(t, 2400, MaxWords(TargetWords(entity.WordPresetLong)))
	assert.Equal(t, 1200, MaxWords(1000))

	assert.Equal(t, 1463, TokenBudget(750))
	assert.Equal(t, 2438, TokenBudget(1250))
	assert.Equal(t, 3900, TokenBudget(2000))
	assert.Equal(t, 5850, TokenBudget(3000))
}
