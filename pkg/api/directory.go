package api

import (
	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/api/router"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store"
)

func (h *handlers) upsertUser(ctx *fasthttp.RequestCtx) {
	userID, ok := router.ValidatePathParam(ctx, "userID")
	if !ok {
		return
	}
	if err := store.ValidateUserID("user_id", userID); err != nil {
		router.WriteError(ctx, err)
		return
	}
	var patch models.IdentityPatch
	if !router.DecodeBody(ctx, &patch) {
		return
	}
	id, created, err := h.Directory.UpsertUser(userID, patch)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	status := fasthttp.StatusOK
	if created {
		status = fasthttp.StatusCreated
	}
	router.WriteJSON(ctx, status, map[string]interface{}{"user": id, "created": created})
}

func (h *handlers) getUser(ctx *fasthttp.RequestCtx) {
	userID, ok := router.ValidatePathParam(ctx, "userID")
	if !ok {
		return
	}
	id, err := h.Directory.LookupUser(userID)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"user": id})
}

func (h *handlers) upsertChannel(ctx *fasthttp.RequestCtx) {
	channelID, ok := router.ValidatePathParam(ctx, "channelID")
	if !ok {
		return
	}
	if err := store.ValidateChannelID(channelID); err != nil {
		router.WriteError(ctx, err)
		return
	}
	var patch models.ChannelPatch
	if !router.DecodeBody(ctx, &patch) {
		return
	}
	ch, created, err := h.Directory.UpsertChannel(channelID, patch)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	status := fasthttp.StatusOK
	if created {
		status = fasthttp.StatusCreated
	}
	router.WriteJSON(ctx, status, map[string]interface{}{"channel": ch, "created": created})
}

func (h *handlers) getChannel(ctx *fasthttp.RequestCtx) {
	channelID, ok := router.ValidatePathParam(ctx, "channelID")
	if !ok {
		return
	}
	ch, err := h.Directory.GetChannel(channelID)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"channel": ch})
}
