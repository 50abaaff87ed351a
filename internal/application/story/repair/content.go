// Package repair 清理模型输出：去掉开头的元评论，补齐完整结尾，丢弃被截断的末段。
package repair

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minRetainRatio 截断到最后一个句末标点时至少保留的长度比例
	minRetainRatio = 0.8
	// minTailParagraphRatio 末段长度低于前文段落均值的该比例时视为残段
	minTailParagraphRatio = 0.3
)

// preamblePatterns 只作用于文本开头，按顺序尝试
var preamblePatterns = []*regexp.Regexp{
	// "Title" is a fitting title because ...
	regexp.MustCompile(`(?i)^\s*(?:\*\*)?["“][^"”\n]{1,150}["”](?:\*\*)?\s*(?::|[-–—]\s+(?:a|an|this)\b|is\b|would\b|captures\b|works\b|fits\b)[^\n]*\n+`),
	// Here are 3 title options: + 编号列表
	regexp.MustCompile(`(?i)^\s*here are (?:\d+ |some |a few |several )?(?:possible |potential )?(?:episode )?title (?:options|ideas|suggestions)[^\n]*\n+(?:[ \t]*\d+[.)][^\n]*\n+)*`),
	// 开头独立的编号标题列表
	regexp.MustCompile(`^(?:[ \t]*\d+[.)][ \t]+[^\n]{1,100}\n){2,}\s*`),
	// Episode 3: ... / ## Episode 3 / **Episode 3**
	regexp.MustCompile(`(?i)^\s*(?:#{1,6}[ \t]*)?(?:\*\*)?episode[ \t]+\d+\b[^\n]*\n+`),
	// Certainly, here's the next episode:
	regexp.MustCompile(`(?i)^\s*(?:certainly|sure|of course|absolutely|okay|ok)\b[^\n]*:[ \t]*\n+`),
	regexp.MustCompile(`(?i)^\s*here(?:'s| is) (?:the |your |a )?(?:next )?(?:episode|story|continuation|chapter)\b[^\n]*:[ \t]*\n+`),
}

var (
	terminalRe       = regexp.MustCompile(`[.!?…]+["'”’)\]]*`)
	endsTerminalRe   = regexp.MustCompile(`[.!?…]+["'”’)\]]*$`)
	paragraphSplitRe = regexp.MustCompile(`\n[ \t]*\n\s*`)
)

// Content 修复生成正文；末段残段最多丢弃一段
//
// 只有丢弃残段后新的末段仍短于前文均值 30% 时，再次调用才会继续变化。
func Content(text string) string {
	out := text
	for {
		next := CompleteEnding(strings.TrimRightFunc(StripPreamble(out), unicode.IsSpace))
		if next == out {
			break
		}
		out = next
	}
	if dropped := DropTruncatedParagraph(out); dropped != out {
		return CompleteEnding(dropped)
	}
	return out
}

// StripPreamble 去掉开头的标题说明、编号标题列表、剧集编号标题与客套开场
func StripPreamble(text string) string {
	out := text
	for _, re := range preamblePatterns {
		if loc := re.FindStringIndex(out); loc != nil {
			out = out[loc[1]:]
		}
	}
	return strings.TrimLeftFunc(out, unicode.IsSpace)
}

// CompleteEnding 截断到最后一个句末标点；截断后不足原长 80% 时原样返回
func CompleteEnding(text string) string {
	if text == "" || endsTerminalRe.MatchString(text) {
		return text
	}
	matches := terminalRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	cut := text[:matches[len(matches)-1][1]]
	if float64(utf8.RuneCountInString(cut)) < minRetainRatio*float64(utf8.RuneCountInString(text)) {
		return text
	}
	return cut
}

// DropTruncatedParagraph 末段短于前文段落均值的 30% 时丢弃
func DropTruncatedParagraph(text string) string {
	seps := paragraphSplitRe.FindAllStringIndex(text, -1)
	if len(seps) == 0 {
		return text
	}

	paragraphs := paragraphSplitRe.Split(text, -1)
	if len(paragraphs) < 2 {
		return text
	}

	var total int
	for _, p := range paragraphs[:len(paragraphs)-1] {
		total += utf8.RuneCountInString(strings.TrimSpace(p))
	}
	mean := float64(total) / float64(len(paragraphs)-1)
	last := utf8.RuneCountInString(strings.TrimSpace(paragraphs[len(paragraphs)-1]))
	if float64(last) >= minTailParagraphRatio*mean {
		return text
	}
	return strings.TrimRightFunc(text[:seps[len(seps)-1][0]], unicode.IsSpace)
}

// WordCount 按空白切分计数
func WordCount(text string) int {
	return len(strings.Fields(text))
}
