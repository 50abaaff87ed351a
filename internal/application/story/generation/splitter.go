package generation

import (
	"regexp"
	"strings"
)

// sentenceEnd 句末标点及其后的闭合引号、括号与空白
var sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*\s*`)

// SentenceSplitter 将 token 流切分为完整句子，句末标点保留在句中
type SentenceSplitter struct {
	buf strings.Builder
}

// Push 追加文本并返回已完整的句子。
// 位于缓冲末尾的句末匹配暂不切分，等待后续 token 确认标点与引号已结束。
func (s *SentenceSplitter) Push(text string) []string {
	s.buf.WriteString(text)
	pending := s.buf.String()

	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(pending, -1) {
		if loc[1] == len(pending) {
			break
		}
		if sentence := strings.TrimSpace(pending[start:loc[1]]); sentence != "" {
			out = append(out, sentence)
		}
		start = loc[1]
	}

	if start > 0 {
		rest := pending[start:]
		s.buf.Reset()
		s.buf.WriteString(rest)
	}
	return out
}

// Flush 返回剩余片段并清空缓冲
func (s *SentenceSplitter) Flush() string {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return rest
}
