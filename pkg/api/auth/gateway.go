package auth

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/api/router"
	"github.com/dolsel/livetv/pkg/logger"
)

// Middleware applies CORS, the IP whitelist, API key roles with their
// route restrictions, and per-key rate limiting, in that order.
func Middleware(cfg SecConfig) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	limiters := newLimiterPool(cfg.RPS, cfg.Burst)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			path := string(ctx.Path())

			origin := string(ctx.Request.Header.Peek("Origin"))
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				h := &ctx.Response.Header
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
				h.Set("Access-Control-Max-Age", "600")
				h.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-Request-Id")
				h.Set("Access-Control-Expose-Headers", "X-Role-Name,X-Request-Id,Retry-After")
			}
			if string(ctx.Method()) == fasthttp.MethodOptions {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}

			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(ctx)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", path)
					return
				}
			}

			if publicPath(ctx) {
				ctx.Request.Header.Set(RoleHeader, RoleUnauth.String())
				next(ctx)
				return
			}

			role, key, hasKey := resolveRole(ctx, cfg)
			if role == RoleUnauth {
				if hasKey || !cfg.AllowUnauth {
					router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
					logger.Warn("request_unauthorized", "path", path, "remote", ctx.RemoteAddr().String())
					return
				}
			}
			ctx.Request.Header.Set(RoleHeader, role.String())
			ctx.Response.Header.Set(RoleHeader, role.String())

			if !roleAllowed(role, path) {
				router.WriteJSONError(ctx, fasthttp.StatusForbidden, role.String()+" callers may not access "+path)
				logger.Warn("request_forbidden", "role", role.String(), "path", path)
				return
			}

			if !limiters.Allow(key) {
				ctx.Response.Header.Set("Retry-After", "1")
				router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "role", role.String(), "path", path)
				return
			}
			next(ctx)
		}
	}
}

// resolveRole maps the presented key to a role. The returned key is the
// rate-limit bucket: the API key, or the client IP without one.
func resolveRole(ctx *fasthttp.RequestCtx, cfg SecConfig) (Role, string, bool) {
	key := extractAPIKey(ctx)
	if key == "" {
		return RoleUnauth, "ip:" + clientIP(ctx), false
	}
	if _, ok := cfg.AdminKeys[key]; ok {
		return RoleAdmin, key, true
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key, true
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key, true
	}
	return RoleUnauth, key, true
}

func extractAPIKey(ctx *fasthttp.RequestCtx) string {
	if auth := string(ctx.Request.Header.Peek("Authorization")); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
	}
	return strings.TrimSpace(string(ctx.Request.Header.Peek("X-API-Key")))
}

var frontendPrefixes = []string{
	"/v1/channels/",
	"/v1/private/",
	"/v1/users/",
	"/api/chat/",
}

// roleAllowed enforces that admins stay under /admin, nobody else enters
// it, and only backends reach the directory sync routes.
func roleAllowed(role Role, path string) bool {
	isAdmin := path == "/admin" || strings.HasPrefix(path, "/admin/")
	switch role {
	case RoleAdmin:
		return isAdmin
	case RoleBackend:
		return !isAdmin
	case RoleFrontend, RoleUnauth:
		for _, p := range frontendPrefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
	}
	return false
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}

func publicPath(ctx *fasthttp.RequestCtx) bool {
	path := string(ctx.Path())
	return (path == "/healthz" || path == "/readyz") && string(ctx.Method()) == fasthttp.MethodGet
}
