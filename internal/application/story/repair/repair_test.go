package repair

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func paragraph(n int) string {
	return strings.Repeat("a", n-1) + "."
}

func paragraphs(lengths ...int) string {
	parts := make([]string, len(lengths))
	for i, n := range lengths {
		parts[i] = paragraph(n)
	}
	return strings.Join(parts, "\n\n")
}

func TestContent_StripPreamble(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown episode header", "## Episode 4: The Storm\n\nRain fell.", "Rain fell."},
		{"bold episode header", "**Episode 12**\nRain fell.", "Rain fell."},
		{"conversational", "Certainly! Here's the next episode:\n\nRain fell.", "Rain fell."},
		{"here is the episode", "Here is the continuation:\nRain fell.", "Rain fell."},
		{"title options", "Here are 3 title options:\n1. Storm\n2. Rain\n3. Wind\n\nRain fell.", "Rain fell."},
		{"numbered list", "1. Storm Front\n2. Falling Rain\n\nRain fell.", "Rain fell."},
		{"quoted title explanation", "\"The Storm\" captures the episode's mood.\n\nRain fell.", "Rain fell."},
		{"stacked", "Sure, here's episode 4:\n## Episode 4\nRain fell.", "Rain fell."},
		{"dialogue untouched", "\"Run!\" she shouted.\n\nThey ran.", "\"Run!\" she shouted.\n\nThey ran."},
		{"mid-text header untouched", "Rain fell.\nEpisode 4 was mentioned.", "Rain fell.\nEpisode 4 was mentioned."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Content(tt.in))
		})
	}
}

func TestContent_CompleteEnding(t *testing.T) {
	noPunct := "The quick brown fox jumps over the lazy dog and keeps runn"
	assert.Equal(t, noPunct, Content(noPunct))

	shortKeep := "Sentence one. Then more text here that trails off and goes on for a long while without ending"
	assert.Equal(t, shortKeep, Content(shortKeep), "truncation below 80% must be rejected")

	cut := "A long sentence that is complete and fine. Trailing"
	assert.Equal(t, "A long sentence that is complete and fine.", Content(cut))

	quoted := "He looked up. \"Are you coming?\"   \n\n"
	assert.Equal(t, "He looked up. \"Are you coming?\"", Content(quoted))
}

func TestContent_ParagraphCompleteness(t *testing.T) {
	assert.Equal(t, paragraphs(100, 100, 100), Content(paragraphs(100, 100, 100, 10)))
	assert.Equal(t, paragraphs(100, 100, 100, 40), Content(paragraphs(100, 100, 100, 40)))
	assert.Equal(t, paragraph(5), Content(paragraph(5)))
}

func TestContent_DropsOnlyOneTail(t *testing.T) {
	got := Content(paragraphs(1000, 200, 50, 10))
	assert.Equal(t, paragraphs(1000, 200, 50), got)
	assert.Len(t, got, 1254)

	cut := paragraphs(100, 100, 100) + "\n\nand then"
	assert.Equal(t, paragraphs(100, 100, 100), Content(cut))
}

func TestContent_Idempotent(t *testing.T) {
	samples := []string{
		"",
		"   ",
		"Sure, here's episode 4:\n## Episode 4\nRain fell. The wind rose.\n\nShe ran",
		paragraphs(100, 100, 80, 5),
		paragraphs(100, 100, 100, 10) + "\n\nand then",
		"Here are 3 title options:\n1. Storm\n2. Rain\n\n\"Run!\" she said. He did not move",
		"No punctuation at all in this one",
		"One. Two! Three? \"Four.\"\n\nFive",
	}
	for _, s := range samples {
		once := Content(s)
		assert.Equal(t, once, Content(once), "input %q", s)
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("  \n "))
	assert.Equal(t, 4, WordCount("one two\n\nthree\tfour"))
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"quoted", `"The Salt Road"`, "The Salt Road"},
		{"quoted inside explanation", `I suggest "Dust and Bone" because it fits.`, "Dust and Bone"},
		{"smart quotes", "“Night Market”", "Night Market"},
		{"options list", "Here are some options:\n1. Dust and Bone\n2. Salt", "Dust and Bone"},
		{"title prefix", "Title: Night Market", "Night Market"},
		{"ordinal", "3. Echoes", "Echoes"},
		{"single quotes", "'Single Quotes'", "Single Quotes"},
		{"markdown bold", "**The Long Dark**", "The Long Dark"},
		{"empty", "", "Untitled"},
		{"whitespace", "   \n", "Untitled"},
		{"empty quotes", `""`, "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.raw))
		})
	}

	long := strings.Repeat("b", 300)
	assert.Len(t, Title(long), 255)
}

func TestIsPlaceholderTitle(t *testing.T) {
	assert.True(t, IsPlaceholderTitle("Untitled"))
	assert.True(t, IsPlaceholderTitle(" "))
	assert.False(t, IsPlaceholderTitle("Dust"))
}
