package api

import (
	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/api/router"
	"github.com/dolsel/livetv/pkg/gateway"
	"github.com/dolsel/livetv/pkg/models"
)

type sendChannelBody struct {
	AuthorID string      `json:"author_id"`
	Body     string      `json:"body"`
	Kind     models.Kind `json:"kind"`
	GiftRef  string      `json:"gift_ref"`
}

type sendEnvelope struct {
	Success bool        `json:"success"`
	Message interface{} `json:"message"`
}

func (h *handlers) sendChannelMessage(ctx *fasthttp.RequestCtx) {
	channelID, ok := router.ValidatePathParam(ctx, "channelID")
	if !ok {
		return
	}
	var body sendChannelBody
	if !router.DecodeBody(ctx, &body) {
		return
	}
	h.doSendChannel(ctx, gateway.SendChannelRequest{
		ChannelID: channelID,
		AuthorID:  body.AuthorID,
		Body:      body.Body,
		Kind:      body.Kind,
		GiftRef:   body.GiftRef,
	})
}

func (h *handlers) doSendChannel(ctx *fasthttp.RequestCtx, req gateway.SendChannelRequest) {
	res, err := h.Gateway.SendChannelMessage(req)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, sendEnvelope{
		Success: true,
		Message: models.ChannelMessageView{
			ChannelMessage: res.Message,
			Username:       res.AuthorUsername,
			ProfileImage:   res.AuthorProfileImage,
		},
	})
}

func (h *handlers) listChannelMessages(ctx *fasthttp.RequestCtx) {
	channelID, ok := router.ValidatePathParam(ctx, "channelID")
	if !ok {
		return
	}
	h.doListChannel(ctx, channelID)
}

func (h *handlers) doListChannel(ctx *fasthttp.RequestCtx, channelID string) {
	limit, ok := router.QueryInt(ctx, "limit", 0)
	if !ok {
		return
	}
	msgs, err := h.Gateway.ListChannelMessages(channelID, limit)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *handlers) listChannelActivity(ctx *fasthttp.RequestCtx) {
	channelID, ok := router.ValidatePathParam(ctx, "channelID")
	if !ok {
		return
	}
	recs, err := h.Gateway.ListChannelActivity(channelID)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"activity": recs})
}

func (h *handlers) sendPrivateMessage(ctx *fasthttp.RequestCtx) {
	var req gateway.SendPrivateRequest
	if !router.DecodeBody(ctx, &req) {
		return
	}
	h.doSendPrivate(ctx, req)
}

func (h *handlers) doSendPrivate(ctx *fasthttp.RequestCtx, req gateway.SendPrivateRequest) {
	res, err := h.Gateway.SendPrivateMessage(req)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, sendEnvelope{
		Success: true,
		Message: models.PrivateMessageView{
			PrivateMessage:        res.Message,
			SenderUsername:        res.SenderUsername,
			SenderProfileImage:    res.SenderProfileImage,
			RecipientUsername:     res.RecipientUsername,
			RecipientProfileImage: res.RecipientProfileImage,
		},
	})
}

func (h *handlers) listPrivateThread(ctx *fasthttp.RequestCtx) {
	userID, ok := router.ValidatePathParam(ctx, "userID")
	if !ok {
		return
	}
	peerID, ok := router.ValidatePathParam(ctx, "peerID")
	if !ok {
		return
	}
	h.doListPrivate(ctx, userID, peerID)
}

func (h *handlers) doListPrivate(ctx *fasthttp.RequestCtx, userID, peerID string) {
	limit, ok := router.QueryInt(ctx, "limit", 0)
	if !ok {
		return
	}
	msgs, err := h.Gateway.ListPrivateThread(userID, peerID, limit)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *handlers) listConversations(ctx *fasthttp.RequestCtx) {
	userID, ok := router.ValidatePathParam(ctx, "userID")
	if !ok {
		return
	}
	h.doConversations(ctx, userID)
}

func (h *handlers) doConversations(ctx *fasthttp.RequestCtx, userID string) {
	rows, err := h.Gateway.ListConversations(userID)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"conversations": rows})
}
