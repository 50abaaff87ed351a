package repair

import (
	"regexp"
	"strings"

	"storyteller-api/internal/domain/entity"
)

const maxTitleRunes = 255

var (
	quotedTitleRe     = regexp.MustCompile(`["“]([^"”\n]+)["”]`)
	optionsPreambleRe = regexp.MustCompile(`(?i)^\s*(?:[^\n]*\b(?:here are|here is|here's)\b[^\n]*?|(?:episode\s+)?(?:title|options|suggestions)[^:\n]{0,20}):\s*`)
	ordinalRe         = regexp.MustCompile(`^\s*\d+[.)]\s+`)
)

// Title 清理标题生成结果：优先取第一个引号内的内容，否则去掉选项说明、序号与包裹的引号。
// 结果为空时返回 "Untitled"，调用方据此决定是否换 provider 重试。
func Title(raw string) string {
	var title string
	if m := quotedTitleRe.FindStringSubmatch(raw); m != nil {
		title = strings.TrimSpace(m[1])
	}

	if title == "" {
		s := strings.TrimSpace(raw)
		s = optionsPreambleRe.ReplaceAllString(s, "")
		s = firstLine(s)
		s = ordinalRe.ReplaceAllString(s, "")
		s = strings.Trim(s, "*_# \t")
		s = strings.Trim(s, `"'“”‘’`)
		title = strings.TrimSpace(s)
	}

	if r := []rune(title); len(r) > maxTitleRunes {
		title = strings.TrimSpace(string(r[:maxTitleRunes]))
	}
	if title == "" {
		return entity.UntitledEpisode
	}
	return title
}

// IsPlaceholderTitle 是否为缺省标题
func IsPlaceholderTitle(title string) bool {
	return strings.TrimSpace(title) == "" || title == entity.UntitledEpisode
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}
