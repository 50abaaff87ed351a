package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"storyteller-api/pkg/logger"
)

const defaultTokenEncoding = "cl100k_base"

var (
	encodingMu sync.Mutex
	encodings  = map[string]*tiktoken.Tiktoken{}
)

// EstimateTokens 使用 tiktoken 估算 token 数，编码不可用时按 4/3 token/词 近似
func EstimateTokens(encoding, text string) int {
	if text == "" {
		return 0
	}
	if enc := loadEncoding(encoding); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(strings.Fields(text))*4 + 2) / 3
}

// loadEncoding 加载失败时缓存 nil，避免重复下载词表
func loadEncoding(name string) *tiktoken.Tiktoken {
	if name == "" {
		name = defaultTokenEncoding
	}

	encodingMu.Lock()
	defer encodingMu.Unlock()

	if enc, ok := encodings[name]; ok {
		return enc
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		logger.Default().Warn("tiktoken encoding unavailable, using word-based estimate", "encoding", name, "error", err.Error())
		enc = nil
	}
	encodings[name] = enc
	return enc
}
