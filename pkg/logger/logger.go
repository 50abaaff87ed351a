// Package logger 基于 slog 的结构化日志，自动附带请求、故事与链路字段
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ContextKey 日志字段在 context 中的键
type ContextKey string

const (
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	RequestIDKey ContextKey = "request_id"
	StoryIDKey   ContextKey = "story_id"
	EpisodeIDKey ContextKey = "episode_id"
	ProviderKey  ContextKey = "provider_id"
)

// contextKeys 按输出顺序排列
var contextKeys = []ContextKey{RequestIDKey, StoryIDKey, EpisodeIDKey, ProviderKey}

var defaultLogger *slog.Logger

// Init 初始化全局日志器；attrs 为每条日志都带上的进程级字段，如 service 与 version
func Init(level, format string, attrs ...any) {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler).With(attrs...)
	slog.SetDefault(defaultLogger)
}

// ParseLevel 解析日志级别，GORM 日志桥接复用
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 返回全局日志器，未初始化时使用 info 级 JSON 输出
func Default() *slog.Logger {
	if defaultLogger == nil {
		Init("info", "json")
	}
	return defaultLogger
}

// FromContext 带上 context 中的日志字段。
//
// 未显式注入 trace_id 时取当前 span，生成协程与 worker 内的日志也能关联链路。
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}

	if v := ctx.Value(TraceIDKey); v != nil {
		l = l.With(string(TraceIDKey), v)
		if s := ctx.Value(SpanIDKey); s != nil {
			l = l.With(string(SpanIDKey), s)
		}
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(string(TraceIDKey), sc.TraceID().String(), string(SpanIDKey), sc.SpanID().String())
	}

	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			l = l.With(string(key), v)
		}
	}
	return l
}

// WithContext 注入日志字段
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// Debug 记录 DEBUG 级别日志
func Debug(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args...)
}

// Info 记录 INFO 级别日志
func Info(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args...)
}

// Warn 记录 WARN 级别日志
func Warn(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args...)
}

// Error err 可为 nil
func Error(ctx context.Context, msg string, err error, args ...any) {
	log(ctx, slog.LevelError, msg, withCause(err, args)...)
}

// Fatal 记录错误后退出进程
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	log(ctx, slog.LevelError, msg, withCause(err, args)...)
	os.Exit(1)
}

func withCause(err error, args []any) []any {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	return args
}

// log 跳过 runtime.Callers、log 与导出包装函数，source 指向真正的调用方
func log(ctx context.Context, level slog.Level, msg string, args ...any) {
	l := FromContext(ctx)
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}
