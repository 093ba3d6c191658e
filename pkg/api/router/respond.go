package router

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/apperr"
)

// retryAfterSeconds is advertised on transient failures.
const retryAfterSeconds = 2

// WriteJSON writes a JSON response. A zero status leaves the default 200.
func WriteJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	if status != 0 {
		ctx.SetStatusCode(status)
	}
	_ = json.NewEncoder(ctx).Encode(data)
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSON(ctx, status, map[string]string{"error": message})
}

// WriteError maps an engine error to its status and caller-facing text.
func WriteError(ctx *fasthttp.RequestCtx, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindTransient {
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	WriteJSONError(ctx, kind.HTTPStatus(), apperr.Message(err))
}
