package router

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
)

func PathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v := ctx.UserValue(param); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// ValidatePathParam writes a 400 and returns false when the parameter is empty.
func ValidatePathParam(ctx *fasthttp.RequestCtx, name string) (string, bool) {
	value := PathParam(ctx, name)
	if value == "" {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, name+" missing")
		return "", false
	}
	return value, true
}

func Query(ctx *fasthttp.RequestCtx, name string) string {
	return string(ctx.QueryArgs().Peek(name))
}

// QueryInt parses an integer query argument, returning def when absent.
// A malformed value writes a 400 and returns ok=false.
func QueryInt(ctx *fasthttp.RequestCtx, name string, def int) (int, bool) {
	raw := ctx.QueryArgs().Peek(name)
	if len(raw) == 0 {
		return def, true
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// DecodeBody unmarshals the JSON request body into v, writing a 400 on failure.
func DecodeBody(ctx *fasthttp.RequestCtx, v interface{}) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "request body required")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}
