package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader 响应头回显 trace id，便于客户端报障
const TraceIDHeader = "X-Trace-ID"

// Trace 返回 otelgin span 中间件与 trace id 回显中间件，需按顺序注册。
// skipPaths 中的路径（探针、指标）不创建 span。
func Trace(serviceName string, skipPaths ...string) []gin.HandlerFunc {
	span := otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !slices.Contains(skipPaths, r.URL.Path)
		}),
	)

	echo := func(c *gin.Context) {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID := sc.TraceID().String()
			c.Set("trace_id", traceID)
			c.Header(TraceIDHeader, traceID)
		}
		c.Next()
	}
	return []gin.HandlerFunc{span, echo}
}
