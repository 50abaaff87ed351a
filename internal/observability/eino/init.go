// Package eino 注册 Eino 全局回调，将大模型调用接入指标与链路追踪
package eino

import (
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"

	"storyteller-api/internal/config"
)

var initOnce sync.Once

// Init 注册 Eino 全局 callbacks（进程级一次）。
func Init(cfg *config.Config) {
	initOnce.Do(func() {
		handler := cbtemplate.NewHandlerHelper().
			ChatModel(newChatModelCallbackHandler(cfg.LLM.TokenEncoding)).
			Handler()
		einocallbacks.AppendGlobalHandlers(handler)
	})
}
