package generation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitAll(tokens ...string) []string {
	var s SentenceSplitter
	var out []string
	for _, tok := range tokens {
		out = append(out, s.Push(tok)...)
	}
	if rest := s.Flush(); rest != "" {
		out = append(out, rest)
	}
	return out
}

func TestSentenceSplitter(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{"single token", []string{"One. Two! Three?"}, []string{"One.", "Two!", "Three?"}},
		{"split across tokens", []string{"The caravan ha", "lted. Night", " fell."}, []string{"The caravan halted.", "Night fell."}},
		{"closing quote in next token", []string{`He said "Stop.`, `" Then silence.`}, []string{`He said "Stop."`, "Then silence."}},
		{"ellipsis", []string{"Wait... ", "what?! No"}, []string{"Wait...", "what?!", "No"}},
		{"trailing fragment flushed", []string{"No ending here"}, []string{"No ending here"}},
		{"bracket", []string{"(A quiet aside.) Next"}, []string{"(A quiet aside.)", "Next"}},
		{"whitespace only", []string{"  ", "\n"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitAll(tt.tokens...))
		})
	}
}

func TestSentenceSplitter_HoldsTrailingTerminator(t *testing.T) {
	var s SentenceSplitter
	assert.Empty(t, s.Push("Who goes there?"))
	assert.Empty(t, s.Push("!"))
	assert.Equal(t, []string{"Who goes there?!"}, s.Push(" Silence"))
	assert.Equal(t, "Silence", s.Flush())
	assert.Empty(t, s.Flush())
}

func TestSentenceSplitter_PreservesText(t *testing.T) {
	text := "Ada crossed the dunes. Bram waited! Would the well hold? \"Yes.\" She drank"
	var tokens []string
	for i := 0; i < len(text); i += 3 {
		end := min(i+3, len(text))
		tokens = append(tokens, text[i:end])
	}
	got := splitAll(tokens...)
	assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(got, " "))
}

func TestEventEncode(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{StartEvent{EpisodeID: "ep-1"}, `{"event":"start","data":"ep-1","episode_id":"ep-1"}`},
		{TokenEvent{Text: "Rain"}, `{"event":"token","data":"Rain"}`},
		{SentenceEvent{Text: "Rain fell."}, `{"event":"sentence","data":"Rain fell."}`},
		{
			CompleteEvent{EpisodeID: "ep-1", Title: "Storm", WordCount: 812},
			`{"event":"complete","data":{"episode_id":"ep-1","title":"Storm","word_count":812},"episode_id":"ep-1"}`,
		},
		{ErrorEvent{EpisodeID: "ep-1", Message: "LLM call failed"}, `{"event":"error","data":"LLM call failed","episode_id":"ep-1"}`},
		{ErrorEvent{Message: "story not found"}, `{"event":"error","data":"story not found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.event.Name(), func(t *testing.T) {
			raw, err := tt.event.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, tt.event.Name(), decoded["event"])
		})
	}
}
