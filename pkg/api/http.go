// Package api binds the delivery gateway and its supporting admin and
// directory operations to fasthttp routes.
package api

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/dolsel/livetv/pkg/api/auth"
	"github.com/dolsel/livetv/pkg/api/router"
	"github.com/dolsel/livetv/pkg/gateway"
	"github.com/dolsel/livetv/pkg/models"
	hrouter "github.com/dolsel/livetv/pkg/router"
)

// DirectorySync is the directory surface the backend routes drive.
type DirectorySync interface {
	LookupUser(userID string) (models.Identity, error)
	GetChannel(channelID string) (models.Channel, error)
	UpsertUser(userID string, patch models.IdentityPatch) (models.Identity, bool, error)
	UpsertChannel(channelID string, patch models.ChannelPatch) (models.Channel, bool, error)
}

// AdminStore is the store surface exposed under /admin.
type AdminStore interface {
	Stats() (models.Stats, error)
	GetMessage(id uint64) (models.Envelope, error)
}

// Snapshotter takes an on-demand checkpoint and returns its location.
type Snapshotter interface {
	TakeSnapshot() (string, error)
}

type Deps struct {
	Gateway   *gateway.Service
	Directory DirectorySync
	Admin     AdminStore
	// Snapshots may be nil when checkpoints are disabled.
	Snapshots Snapshotter
	Ready     func() bool
}

type handlers struct {
	Deps
}

// NewHandler builds the full request pipeline: request ids and access
// metrics outermost, then auth, then the router.
func NewHandler(d Deps, sec auth.SecConfig) fasthttp.RequestHandler {
	r := hrouter.New()
	RegisterRoutes(r, d)
	return observe(auth.Middleware(sec)(r.Handler))
}

// RegisterRoutes wires every route onto r.
func RegisterRoutes(r *hrouter.Router, d Deps) {
	h := &handlers{Deps: d}

	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	r.POST("/v1/channels/{channelID}/messages", h.sendChannelMessage)
	r.GET("/v1/channels/{channelID}/messages", h.listChannelMessages)
	r.GET("/v1/channels/{channelID}/activity", h.listChannelActivity)
	r.POST("/v1/private/messages", h.sendPrivateMessage)
	r.GET("/v1/users/{userID}/threads/{peerID}/messages", h.listPrivateThread)
	r.GET("/v1/users/{userID}/conversations", h.listConversations)

	r.PUT("/v1/directory/users/{userID}", h.upsertUser)
	r.GET("/v1/directory/users/{userID}", h.getUser)
	r.PUT("/v1/directory/channels/{channelID}", h.upsertChannel)
	r.GET("/v1/directory/channels/{channelID}", h.getChannel)

	r.GET("/api/chat/messages", h.legacyListChannel)
	r.POST("/api/chat/messages", h.legacySendChannel)
	r.GET("/api/chat/private", h.legacyListPrivate)
	r.POST("/api/chat/private", h.legacySendPrivate)
	r.GET("/api/chat/private/conversations", h.legacyConversations)

	r.GET("/admin/health", h.healthz)
	r.GET("/admin/stats", h.adminStats)
	r.GET("/admin/messages/{id}", h.adminGetMessage)
	r.POST("/admin/snapshots", h.adminSnapshot)
	r.GET("/admin/debug/prometheus", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	})
}

func (h *handlers) healthz(ctx *fasthttp.RequestCtx) {
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(ctx *fasthttp.RequestCtx) {
	if h.Ready != nil && !h.Ready() {
		router.WriteJSON(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ready"})
}
