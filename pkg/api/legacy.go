package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/api/router"
	"github.com/dolsel/livetv/pkg/gateway"
	"github.com/dolsel/livetv/pkg/models"
)

// Query-string routes kept for the mobile pollers. They reach the same
// gateway operations as v1 but speak the older field names, and their
// clients send and compare user ids as JSON numbers.

// legacyID accepts a JSON string or integer and renders all-digit ids back
// as numbers.
type legacyID string

func (id *legacyID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = legacyID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return errors.New("id must be a string or an integer")
	}
	*id = legacyID(strconv.FormatInt(n, 10))
	return nil
}

func (id legacyID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

type legacyChannelBody struct {
	ChannelID   legacyID    `json:"channel_id"`
	UserID      legacyID    `json:"user_id"`
	Message     string      `json:"message"`
	MessageType models.Kind `json:"message_type"`
	GiftType    string      `json:"gift_type"`
}

type legacyPrivateBody struct {
	SenderID    legacyID    `json:"sender_id"`
	RecipientID legacyID    `json:"recipient_id"`
	Message     string      `json:"message"`
	MessageType models.Kind `json:"message_type"`
	GiftType    string      `json:"gift_type"`
}

type legacyChannelMessage struct {
	ID           uint64      `json:"id"`
	ChannelID    legacyID    `json:"channel_id"`
	UserID       legacyID    `json:"user_id"`
	Message      string      `json:"message"`
	MessageType  models.Kind `json:"message_type"`
	GiftType     *string     `json:"gift_type"`
	CreatedAt    time.Time   `json:"created_at"`
	Username     string      `json:"username"`
	ProfileImage string      `json:"profile_image"`
}

type legacyPrivateMessage struct {
	ID                    uint64      `json:"id"`
	SenderID              legacyID    `json:"sender_id"`
	RecipientID           legacyID    `json:"recipient_id"`
	Message               string      `json:"message"`
	MessageType           models.Kind `json:"message_type"`
	GiftType              *string     `json:"gift_type"`
	IsRead                bool        `json:"is_read"`
	CreatedAt             time.Time   `json:"created_at"`
	SenderUsername        string      `json:"sender_username"`
	SenderProfileImage    string      `json:"sender_profile_image"`
	RecipientUsername     string      `json:"recipient_username"`
	RecipientProfileImage string      `json:"recipient_profile_image"`
}

type legacyConversation struct {
	OtherUserID           legacyID  `json:"other_user_id"`
	LastMessage           string    `json:"last_message"`
	LastMessageTime       time.Time `json:"last_message_time"`
	OtherUserName         string    `json:"other_user_name"`
	OtherUserProfileImage string    `json:"other_user_profile_image"`
	UnreadCount           int       `json:"unread_count"`
}

// giftType is null for text messages, as the old rows stored it.
func giftType(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}

func toLegacyChannel(v models.ChannelMessageView) legacyChannelMessage {
	return legacyChannelMessage{
		ID:           v.ID,
		ChannelID:    legacyID(v.ChannelID),
		UserID:       legacyID(v.AuthorID),
		Message:      v.Body,
		MessageType:  v.Kind,
		GiftType:     giftType(v.GiftRef),
		CreatedAt:    v.CreatedAt,
		Username:     v.Username,
		ProfileImage: v.ProfileImage,
	}
}

func toLegacyPrivate(v models.PrivateMessageView) legacyPrivateMessage {
	return legacyPrivateMessage{
		ID:                    v.ID,
		SenderID:              legacyID(v.SenderID),
		RecipientID:           legacyID(v.RecipientID),
		Message:               v.Body,
		MessageType:           v.Kind,
		GiftType:              giftType(v.GiftRef),
		IsRead:                v.Read,
		CreatedAt:             v.CreatedAt,
		SenderUsername:        v.SenderUsername,
		SenderProfileImage:    v.SenderProfileImage,
		RecipientUsername:     v.RecipientUsername,
		RecipientProfileImage: v.RecipientProfileImage,
	}
}

func requireQuery(ctx *fasthttp.RequestCtx, names ...string) ([]string, bool) {
	out := make([]string, len(names))
	for i, n := range names {
		v := router.Query(ctx, n)
		if v == "" {
			router.WriteJSONError(ctx, fasthttp.StatusBadRequest, n+" is required")
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (h *handlers) legacyListChannel(ctx *fasthttp.RequestCtx) {
	v, ok := requireQuery(ctx, "channel_id")
	if !ok {
		return
	}
	limit, ok := router.QueryInt(ctx, "limit", 0)
	if !ok {
		return
	}
	msgs, err := h.Gateway.ListChannelMessages(v[0], limit)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	out := make([]legacyChannelMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toLegacyChannel(m)
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"messages": out})
}

func (h *handlers) legacySendChannel(ctx *fasthttp.RequestCtx) {
	var b legacyChannelBody
	if !router.DecodeBody(ctx, &b) {
		return
	}
	res, err := h.Gateway.SendChannelMessage(gateway.SendChannelRequest{
		ChannelID: string(b.ChannelID),
		AuthorID:  string(b.UserID),
		Body:      b.Message,
		Kind:      b.MessageType,
		GiftRef:   b.GiftType,
	})
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, sendEnvelope{
		Success: true,
		Message: toLegacyChannel(models.ChannelMessageView{
			ChannelMessage: res.Message,
			Username:       res.AuthorUsername,
			ProfileImage:   res.AuthorProfileImage,
		}),
	})
}

func (h *handlers) legacyListPrivate(ctx *fasthttp.RequestCtx) {
	v, ok := requireQuery(ctx, "user_id", "other_user_id")
	if !ok {
		return
	}
	limit, ok := router.QueryInt(ctx, "limit", 0)
	if !ok {
		return
	}
	msgs, err := h.Gateway.ListPrivateThread(v[0], v[1], limit)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	out := make([]legacyPrivateMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toLegacyPrivate(m)
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"messages": out})
}

func (h *handlers) legacySendPrivate(ctx *fasthttp.RequestCtx) {
	var b legacyPrivateBody
	if !router.DecodeBody(ctx, &b) {
		return
	}
	res, err := h.Gateway.SendPrivateMessage(gateway.SendPrivateRequest{
		SenderID:    string(b.SenderID),
		RecipientID: string(b.RecipientID),
		Body:        b.Message,
		Kind:        b.MessageType,
		GiftRef:     b.GiftType,
	})
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, sendEnvelope{
		Success: true,
		Message: toLegacyPrivate(models.PrivateMessageView{
			PrivateMessage:        res.Message,
			SenderUsername:        res.SenderUsername,
			SenderProfileImage:    res.SenderProfileImage,
			RecipientUsername:     res.RecipientUsername,
			RecipientProfileImage: res.RecipientProfileImage,
		}),
	})
}

func (h *handlers) legacyConversations(ctx *fasthttp.RequestCtx) {
	v, ok := requireQuery(ctx, "user_id")
	if !ok {
		return
	}
	rows, err := h.Gateway.ListConversations(v[0])
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	out := make([]legacyConversation, len(rows))
	for i, r := range rows {
		out[i] = legacyConversation{
			OtherUserID:           legacyID(r.PeerID),
			LastMessage:           r.LastMessage.Body,
			LastMessageTime:       r.LastMessageAt,
			OtherUserName:         r.OtherUserName,
			OtherUserProfileImage: r.OtherUserProfileImage,
			UnreadCount:           r.UnreadCount,
		}
	}
	router.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"conversations": out})
}
