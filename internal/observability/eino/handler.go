package eino

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyteller-api/internal/domain/service"
	"storyteller-api/internal/infrastructure/llm"
	"storyteller-api/pkg/logger"
	"storyteller-api/pkg/metrics"
)

// startTimeKey 用于在 Context 中存储调用开始时间
type startTimeKey struct{}

// promptTokensKey 存储按输入消息估算的 prompt token 数
type promptTokensKey struct{}

// usage 一次调用的 token 消耗，estimated 表示后端未返回 usage
type usage struct {
	prompt     int
	completion int
	estimated  bool
}

// newChatModelCallbackHandler 创建大模型调用的回调处理器
//
// 记录调用次数、耗时、token 消耗，并为每次调用创建一个 Span。
// 流式调用在 OnEndWithStreamOutput 中读取回调流副本，读完后再结算。
func newChatModelCallbackHandler(encoding string) *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, promptTokensKey{}, estimatePromptTokens(encoding, input))

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			u := usage{estimated: true, prompt: promptEstimate(ctx)}
			if output != nil && output.TokenUsage != nil {
				u = usage{prompt: output.TokenUsage.PromptTokens, completion: output.TokenUsage.CompletionTokens}
			} else if output != nil && output.Message != nil {
				u.completion = llm.EstimateTokens(encoding, output.Message.Content)
			}
			finish(ctx, modelNameFromOutput(output), u)
			return ctx
		},

		OnEndWithStreamOutput: func(ctx context.Context, info *einocb.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			go drainStream(ctx, encoding, output)
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			workflow := service.WorkflowFromContext(ctx)
			provider := service.ProviderFromContext(ctx)
			modelName := ""
			if info != nil {
				modelName = info.Type
			}

			metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

// drainStream 读完回调流副本后结算指标；回调流必须被关闭
func drainStream(ctx context.Context, encoding string, output *schema.StreamReader[*model.CallbackOutput]) {
	defer output.Close()

	var (
		modelName string
		content   strings.Builder
		reported  *model.TokenUsage
	)
	for {
		frame, err := output.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.LLMCallTotal.WithLabelValues(service.WorkflowFromContext(ctx), service.ProviderFromContext(ctx), modelName, "error").Inc()
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return
		}
		if frame == nil {
			continue
		}
		if name := modelNameFromOutput(frame); name != "" {
			modelName = name
		}
		if frame.TokenUsage != nil {
			reported = frame.TokenUsage
		}
		if frame.Message != nil {
			content.WriteString(frame.Message.Content)
		}
	}

	u := usage{estimated: true, prompt: promptEstimate(ctx), completion: llm.EstimateTokens(encoding, content.String())}
	if reported != nil && reported.TotalTokens > 0 {
		u = usage{prompt: reported.PromptTokens, completion: reported.CompletionTokens}
	}
	finish(ctx, modelName, u)
}

// finish 上报成功调用的指标并结束 Span
func finish(ctx context.Context, modelName string, u usage) {
	workflow := service.WorkflowFromContext(ctx)
	provider := service.ProviderFromContext(ctx)

	metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "success").Inc()
	if d := elapsedSeconds(ctx); d > 0 {
		metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
	}
	metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "prompt").Add(float64(u.prompt))
	metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "completion").Add(float64(u.completion))

	logger.Debug(ctx, "llm call finished",
		"workflow", workflow,
		"model", modelName,
		"prompt_tokens", u.prompt,
		"completion_tokens", u.completion,
		"estimated", u.estimated,
	)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", u.prompt),
		attribute.Int("llm.completion_tokens", u.completion),
		attribute.Bool("llm.tokens_estimated", u.estimated),
	)
	span.End()
}

func estimatePromptTokens(encoding string, in *model.CallbackInput) int {
	if in == nil {
		return 0
	}
	total := 0
	for _, m := range in.Messages {
		if m != nil {
			total += llm.EstimateTokens(encoding, m.Content)
		}
	}
	return total
}

func promptEstimate(ctx context.Context) int {
	n, _ := ctx.Value(promptTokensKey{}).(int)
	return n
}

// elapsedSeconds 计算从 OnStart 到当前的耗时（秒），取不到开始时间时返回 0
func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
