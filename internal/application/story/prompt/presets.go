package prompt

import (
	"math"

	"storyteller-api/internal/domain/entity"
)

// LengthPreset 篇幅档位对应的结构约束
type LengthPreset struct {
	Preset      entity.WordPreset
	TargetWords int
	Scenes      string
	Paragraphs  string
	Instruction string
}

// MaxWords 硬上限 target×1.2
func MaxWords(targetWords int) int {
	return targetWords * 6 / 5
}

var lengthPresets = map[entity.WordPreset]LengthPreset{
	entity.WordPresetShort: {
		Preset: entity.WordPresetShort, TargetWords: 750, Scenes: "1-2", Paragraphs: "8-12",
		Instruction: "Write a focused, single-scene episode. Keep descriptions tight.",
	},
	entity.WordPresetMedium: {
		Preset: entity.WordPresetMedium, TargetWords: 1250, Scenes: "2-3", Paragraphs: "15-20",
		Instruction: "Write 2-3 connected scenes. Balance action with brief reflection.",
	},
	entity.WordPresetLong: {
		Preset: entity.WordPresetLong, TargetWords: 2000, Scenes: "3-4", Paragraphs: "25-30",
		Instruction: "Develop 3-4 scenes with detailed description and dialogue.",
	},
	entity.WordPresetEpic: {
		Preset: entity.WordPresetEpic, TargetWords: 3000, Scenes: "4-6", Paragraphs: "35-45",
		Instruction: "Create an expansive episode with multiple scenes and world-building.",
	},
}

// LookupPreset 查找篇幅档位，未知档位按 medium 处理
func LookupPreset(p entity.WordPreset) LengthPreset {
	if lp, ok := lengthPresets[p]; ok {
		return lp
	}
	return lengthPresets[entity.WordPresetMedium]
}

// TargetWords 档位目标字数
func TargetWords(p entity.WordPreset) int {
	return LookupPreset(p).TargetWords
}

// TokenBudget 生成调用的 max tokens：约 1.3 token/词，再留 50% 余量
func TokenBudget(targetWords int) int {
	return int(math.Round(float64(targetWords) * 1.3 * 1.5))
}

var styleInstructions = map[entity.WritingStyle]string{
	entity.WritingStyleDescriptive: "Use rich, detailed descriptions of settings, characters, and sensory details. Paint vivid scenes.",
	entity.WritingStyleAction:      "Focus on dynamic action sequences, physical movement, and tension. Keep descriptions tight and punchy.",
	entity.WritingStyleDialogue:    "Emphasize character conversations and verbal exchanges. Let personality shine through speech.",
	entity.WritingStyleBalanced:    "Balance description, action, and dialogue naturally based on scene needs.",
}

var moodInstructions = map[entity.Mood]string{
	entity.MoodLight:    "Maintain a light, optimistic tone. Even conflicts should feel manageable.",
	entity.MoodModerate: "Balance lighter and heavier moments naturally.",
	entity.MoodIntense:  "Heighten emotional stakes. Characters feel things deeply.",
	entity.MoodDark:     "Embrace darker themes and emotions. Allow for tragedy and moral complexity.",
}

var pacingInstructions = map[entity.Pacing]string{
	entity.PacingSlow:     "Take time with scenes. Allow moments to breathe. Detailed internal reflection.",
	entity.PacingModerate: "Natural pacing that varies with scene needs.",
	entity.PacingFast:     "Keep momentum high. Quick scene transitions. Punchy prose.",
}
