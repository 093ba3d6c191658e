package models

import "time"

// Kind distinguishes plain text from gift messages.
type Kind string

const (
	KindText Kind = "text"
	KindGift Kind = "gift"
)

// Valid reports whether k is a known kind. The empty kind is not valid;
// callers default it with Normalize first.
func (k Kind) Valid() bool {
	return k == KindText || k == KindGift
}

// Normalize returns KindText for the empty kind.
func (k Kind) Normalize() Kind {
	if k == "" {
		return KindText
	}
	return k
}

type ChannelMessage struct {
	ID        uint64    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Kind      Kind      `json:"kind"`
	GiftRef   string    `json:"gift_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PrivateMessage is immutable apart from Read, which only moves false to true.
type PrivateMessage struct {
	ID          uint64    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	Kind        Kind      `json:"kind"`
	GiftRef     string    `json:"gift_ref,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Peer returns the other party of m relative to user.
func (m PrivateMessage) Peer(user string) string {
	if m.SenderID == user {
		return m.RecipientID
	}
	return m.SenderID
}

type ActivityRecord struct {
	UserID     string    `json:"user_id"`
	ChannelID  string    `json:"channel_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Online     bool      `json:"online"`
}

// ConversationSummary is derived on every request and never stored.
type ConversationSummary struct {
	PeerID        string         `json:"peer_id"`
	LastMessage   PrivateMessage `json:"last_message"`
	LastMessageAt time.Time      `json:"last_message_at"`
	UnreadCount   int            `json:"unread_count"`
}

// Envelope is the generic stored form used by the id registry lookup.
type Envelope struct {
	Namespace string          `json:"namespace"`
	Channel   *ChannelMessage `json:"channel,omitempty"`
	Private   *PrivateMessage `json:"private,omitempty"`
}
