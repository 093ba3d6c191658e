package api

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/logger"
	hrouter "github.com/dolsel/livetv/pkg/router"
	"github.com/dolsel/livetv/pkg/telemetry"
)

const requestIDHeader = "X-Request-Id"

// observe assigns a request id, records latency by route pattern and
// writes one access log line per request.
func observe(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		reqID := string(ctx.Request.Header.Peek(requestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
			ctx.Request.Header.Set(requestIDHeader, reqID)
		}
		ctx.Response.Header.Set(requestIDHeader, reqID)

		next(ctx)

		status := ctx.Response.StatusCode()
		route, _ := ctx.UserValue(hrouter.RouteKey).(string)
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		telemetry.HTTPDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
		logger.Debug("http_request",
			"request_id", reqID,
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"route", route,
			"status", status,
			"duration", elapsed,
			"remote", ctx.RemoteAddr().String(),
			"authorization", logger.RedactHeader("Authorization", string(ctx.Request.Header.Peek("Authorization"))),
		)
	}
}
