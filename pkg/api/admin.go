package api

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/api/router"
	"github.com/dolsel/livetv/pkg/logger"
)

func (h *handlers) adminStats(ctx *fasthttp.RequestCtx) {
	st, err := h.Admin.Stats()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"stats":   st,
		"summary": humanize.Comma(int64(st.ChannelMessages+st.PrivateMessages)) + " messages",
	})
}

func (h *handlers) adminGetMessage(ctx *fasthttp.RequestCtx) {
	raw, ok := router.ValidatePathParam(ctx, "id")
	if !ok {
		return
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "id must be a positive integer")
		return
	}
	env, err := h.Admin.GetMessage(id)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, env)
}

func (h *handlers) adminSnapshot(ctx *fasthttp.RequestCtx) {
	if h.Snapshots == nil {
		router.WriteJSONError(ctx, fasthttp.StatusConflict, "snapshots are not configured")
		return
	}
	path, err := h.Snapshots.TakeSnapshot()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	logger.Info("admin_snapshot_taken", "path", path)
	router.WriteJSON(ctx, fasthttp.StatusCreated, map[string]string{"path": path})
}
