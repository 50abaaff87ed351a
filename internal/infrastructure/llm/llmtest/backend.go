// Package llmtest 提供脚本化的 llm.Backend，供上层单元测试使用
package llmtest

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"storyteller-api/internal/domain/service"
	"storyteller-api/internal/infrastructure/llm"
)

// Reply 一次调用的脚本化结果
type Reply struct {
	// Chunks 依次作为流中的消息返回
	Chunks []string
	// Err 打开流时直接返回的错误
	Err error
	// StreamErr 在全部 Chunks 之后由流返回的错误
	StreamErr error
}

// Text 单块文本回复
func Text(s string) Reply {
	return Reply{Chunks: []string{s}}
}

// Call 记录的调用
type Call struct {
	Workflow string
	Request  llm.Request
}

// Backend 按 Respond 返回结果并记录全部调用
type Backend struct {
	Respond func(call Call) Reply

	mu    sync.Mutex
	calls []Call
}

var _ llm.Backend = (*Backend)(nil)

// New 创建脚本化后端
func New(respond func(call Call) Reply) *Backend {
	return &Backend{Respond: respond}
}

// Stream 实现 llm.Backend
func (b *Backend) Stream(ctx context.Context, req llm.Request) (*schema.StreamReader[*schema.Message], error) {
	call := Call{Workflow: service.WorkflowFromContext(ctx), Request: req}
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()

	var reply Reply
	if b.Respond != nil {
		reply = b.Respond(call)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	sr, sw := schema.Pipe[*schema.Message](len(reply.Chunks) + 1)
	for _, c := range reply.Chunks {
		sw.Send(schema.AssistantMessage(c, nil), nil)
	}
	if reply.StreamErr != nil {
		sw.Send(nil, reply.StreamErr)
	}
	sw.Close()
	return sr, nil
}

// Generate 实现 llm.Backend
func (b *Backend) Generate(ctx context.Context, req llm.Request) (string, error) {
	stream, err := b.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.Collect(stream)
}

// Calls 返回全部调用记录
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsFor 返回指定用途的调用记录
func (b *Backend) CallsFor(workflow string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Workflow == workflow {
			out = append(out, c)
		}
	}
	return out
}
