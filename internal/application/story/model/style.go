package model

import "storyteller-api/internal/domain/entity"

// Style 写作风格三轴
type Style struct {
	WritingStyle entity.WritingStyle `json:"writing_style"`
	Mood         entity.Mood         `json:"mood"`
	Pacing       entity.Pacing       `json:"pacing"`
}

// DefaultStyle 均衡风格，对应不输出风格配置段
func DefaultStyle() Style {
	return Style{
		WritingStyle: entity.DefaultWritingStyle,
		Mood:         entity.DefaultMood,
		Pacing:       entity.DefaultPacing,
	}
}

// IsDefault 三轴是否均为默认值
func (s Style) IsDefault() bool {
	return s == DefaultStyle()
}
