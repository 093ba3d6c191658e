// Package gateway implements the delivery operations clients poll against.
//
// Sends validate their input, resolve every referenced user and channel,
// and only then append. A failed resolution never leaves a partial write.
package gateway

import (
	"time"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/conversations"
	"github.com/dolsel/livetv/pkg/directory"
	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store"
	"github.com/dolsel/livetv/pkg/telemetry"
)

// Store is the subset of the message store the gateway drives.
type Store interface {
	conversations.Source
	AppendChannelMessage(channelID, authorID string, c store.Content) (models.ChannelMessage, error)
	AppendPrivateMessage(senderID, recipientID string, c store.Content) (models.PrivateMessage, error)
	ListChannelMessages(channelID string, limit int) ([]models.ChannelMessage, error)
	ListPrivateThread(user, peer string, limit int) ([]models.PrivateMessage, int, error)
	ListChannelActivity(channelID string) ([]models.ActivityRecord, error)
}

type Service struct {
	store    Store
	users    directory.Identities
	channels directory.Channels
}

func New(st Store, users directory.Identities, channels directory.Channels) *Service {
	return &Service{store: st, users: users, channels: channels}
}

type SendChannelRequest struct {
	ChannelID string      `json:"channel_id"`
	AuthorID  string      `json:"author_id"`
	Body      string      `json:"body"`
	Kind      models.Kind `json:"kind"`
	GiftRef   string      `json:"gift_ref,omitempty"`
}

type SendChannelResponse struct {
	Message            models.ChannelMessage `json:"message"`
	AuthorUsername     string                `json:"author_username"`
	AuthorProfileImage string                `json:"author_profile_image"`
}

type SendPrivateRequest struct {
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Body        string      `json:"body"`
	Kind        models.Kind `json:"kind"`
	GiftRef     string      `json:"gift_ref,omitempty"`
}

type SendPrivateResponse struct {
	Message               models.PrivateMessage `json:"message"`
	SenderUsername        string                `json:"sender_username"`
	SenderProfileImage    string                `json:"sender_profile_image"`
	RecipientUsername     string                `json:"recipient_username"`
	RecipientProfileImage string                `json:"recipient_profile_image"`
}

func (s *Service) SendChannelMessage(req SendChannelRequest) (SendChannelResponse, error) {
	const op = "send_channel_message"
	content, err := s.checkChannelSend(req)
	if err != nil {
		return SendChannelResponse{}, s.fail(op, err)
	}
	if _, err := s.channels.LookupChannel(req.ChannelID); err != nil {
		return SendChannelResponse{}, s.fail(op, err)
	}
	author, err := s.users.LookupUser(req.AuthorID)
	if err != nil {
		return SendChannelResponse{}, s.fail(op, err)
	}

	msg, err := s.store.AppendChannelMessage(req.ChannelID, req.AuthorID, content)
	if err != nil {
		return SendChannelResponse{}, s.fail(op, err)
	}
	telemetry.MessagesAppended.WithLabelValues("channel").Inc()
	telemetry.ActivityTouches.Inc()
	logger.Info("channel_message_sent", "channel", req.ChannelID, "author", req.AuthorID, "id", msg.ID, "kind", msg.Kind)
	return SendChannelResponse{
		Message:            msg,
		AuthorUsername:     author.Username,
		AuthorProfileImage: author.ProfileImage,
	}, nil
}

func (s *Service) checkChannelSend(req SendChannelRequest) (store.Content, error) {
	if err := store.ValidateChannelID(req.ChannelID); err != nil {
		return store.Content{}, err
	}
	if err := store.ValidateUserID("author_id", req.AuthorID); err != nil {
		return store.Content{}, err
	}
	return store.Content{Body: req.Body, Kind: req.Kind, GiftRef: req.GiftRef}.Normalize()
}

func (s *Service) SendPrivateMessage(req SendPrivateRequest) (SendPrivateResponse, error) {
	const op = "send_private_message"
	if err := store.ValidatePair("sender_id", req.SenderID, "recipient_id", req.RecipientID); err != nil {
		return SendPrivateResponse{}, s.fail(op, err)
	}
	content, err := store.Content{Body: req.Body, Kind: req.Kind, GiftRef: req.GiftRef}.Normalize()
	if err != nil {
		return SendPrivateResponse{}, s.fail(op, err)
	}
	sender, err := s.users.LookupUser(req.SenderID)
	if err != nil {
		return SendPrivateResponse{}, s.fail(op, err)
	}
	recipient, err := s.users.LookupUser(req.RecipientID)
	if err != nil {
		return SendPrivateResponse{}, s.fail(op, err)
	}

	msg, err := s.store.AppendPrivateMessage(req.SenderID, req.RecipientID, content)
	if err != nil {
		return SendPrivateResponse{}, s.fail(op, err)
	}
	telemetry.MessagesAppended.WithLabelValues("private").Inc()
	logger.Info("private_message_sent", "sender", req.SenderID, "recipient", req.RecipientID, "id", msg.ID, "kind", msg.Kind)
	return SendPrivateResponse{
		Message:               msg,
		SenderUsername:        sender.Username,
		SenderProfileImage:    sender.ProfileImage,
		RecipientUsername:     recipient.Username,
		RecipientProfileImage: recipient.ProfileImage,
	}, nil
}

// ListChannelMessages returns the newest window ascending. The channel is
// not resolved; an unknown channel lists empty.
func (s *Service) ListChannelMessages(channelID string, limit int) ([]models.ChannelMessageView, error) {
	msgs, err := s.store.ListChannelMessages(channelID, limit)
	if err != nil {
		return nil, s.fail("list_channel_messages", err)
	}
	names := s.nameCache()
	out := make([]models.ChannelMessageView, len(msgs))
	for i, m := range msgs {
		id := names(m.AuthorID)
		out[i] = models.ChannelMessageView{ChannelMessage: m, Username: id.Username, ProfileImage: id.ProfileImage}
	}
	return out, nil
}

// ListPrivateThread returns the newest window between user and peer and
// marks peer's messages to user as read.
func (s *Service) ListPrivateThread(user, peer string, limit int) ([]models.PrivateMessageView, error) {
	msgs, marked, err := s.store.ListPrivateThread(user, peer, limit)
	if err != nil {
		return nil, s.fail("list_private_thread", err)
	}
	if marked > 0 {
		telemetry.ReceiptsMarked.Add(float64(marked))
		logger.Debug("thread_read", "user", user, "peer", peer, "marked", marked)
	}
	names := s.nameCache()
	out := make([]models.PrivateMessageView, len(msgs))
	for i, m := range msgs {
		snd, rcp := names(m.SenderID), names(m.RecipientID)
		out[i] = models.PrivateMessageView{
			PrivateMessage:        m,
			SenderUsername:        snd.Username,
			SenderProfileImage:    snd.ProfileImage,
			RecipientUsername:     rcp.Username,
			RecipientProfileImage: rcp.ProfileImage,
		}
	}
	return out, nil
}

func (s *Service) ListConversations(user string) ([]models.ConversationView, error) {
	const op = "list_conversations"
	if err := store.ValidateUserID("user_id", user); err != nil {
		return nil, s.fail(op, err)
	}
	start := time.Now()
	rows, err := conversations.Aggregate(s.store, user)
	telemetry.ObserveSince(telemetry.AggregateDuration, start)
	if err != nil {
		return nil, s.fail(op, err)
	}
	names := s.nameCache()
	out := make([]models.ConversationView, len(rows))
	for i, r := range rows {
		id := names(r.PeerID)
		out[i] = models.ConversationView{ConversationSummary: r, OtherUserName: id.Username, OtherUserProfileImage: id.ProfileImage}
	}
	return out, nil
}

// ListChannelActivity returns who has been seen in a channel, most recent first.
func (s *Service) ListChannelActivity(channelID string) ([]models.ActivityView, error) {
	recs, err := s.store.ListChannelActivity(channelID)
	if err != nil {
		return nil, s.fail("list_channel_activity", err)
	}
	names := s.nameCache()
	out := make([]models.ActivityView, len(recs))
	for i, r := range recs {
		id := names(r.UserID)
		out[i] = models.ActivityView{ActivityRecord: r, Username: id.Username, ProfileImage: id.ProfileImage}
	}
	return out, nil
}

// nameCache memoizes identity lookups for one response. Unknown users
// resolve to empty display fields.
func (s *Service) nameCache() func(string) models.Identity {
	seen := make(map[string]models.Identity)
	return func(userID string) models.Identity {
		if id, ok := seen[userID]; ok {
			return id
		}
		id, err := s.users.LookupUser(userID)
		if err != nil && !apperr.IsNotFound(err) {
			logger.Warn("identity_lookup_failed", "user_id", userID, "error", err)
		}
		seen[userID] = id
		return id
	}
}

func (s *Service) fail(op string, err error) error {
	kind := apperr.KindOf(err)
	telemetry.GatewayErrors.WithLabelValues(op, kind.String()).Inc()
	if kind == apperr.KindInternal || kind == apperr.KindTransient {
		logger.Error("gateway_failed", "op", op, "kind", kind.String(), "error", err)
	}
	return err
}
