package auth

import "github.com/dolsel/livetv/pkg/config"

// caller role
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleFrontend:
		return "frontend"
	case RoleBackend:
		return "backend"
	case RoleAdmin:
		return "admin"
	default:
		return "unauth"
	}
}

// RoleHeader carries the resolved role to handlers and back to clients.
const RoleHeader = "X-Role-Name"

// SecConfig is the resolved security settings the middleware checks against.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	AllowUnauth    bool
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

// FromConfig builds a SecConfig from the security section.
func FromConfig(c config.SecurityConfig) SecConfig {
	return SecConfig{
		AllowedOrigins: c.CORS.AllowedOrigins,
		RPS:            c.RateLimit.RPS,
		Burst:          c.RateLimit.Burst,
		IPWhitelist:    c.IPWhitelist,
		AllowUnauth:    c.AllowUnauth,
		BackendKeys:    keySet(c.APIKeys.Backend),
		FrontendKeys:   keySet(c.APIKeys.Frontend),
		AdminKeys:      keySet(c.APIKeys.Admin),
	}
}

func keySet(keys []string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			m[k] = struct{}{}
		}
	}
	return m
}
