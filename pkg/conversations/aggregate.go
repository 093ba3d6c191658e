// Package conversations builds a user's inbox: one row per correspondent
// with the last message exchanged and the number of unread messages.
package conversations

import (
	"sort"

	"github.com/dolsel/livetv/pkg/models"
)

// Source is the read side of the private message store.
type Source interface {
	UnreadCountsBySender(user string) (map[string]int, error)
	LastMessagesByPeer(user string) (map[string]models.PrivateMessage, error)
}

// Aggregate computes the conversation list of user, newest first.
//
// Unread counts are read before last messages. A message landing between
// the two reads can therefore only show up as a newer last message with a
// stale unread count, never as a peer without a last message. Rows are
// driven by the last-message side; peers missing from the unread side
// count zero.
func Aggregate(src Source, user string) ([]models.ConversationSummary, error) {
	unread, err := src.UnreadCountsBySender(user)
	if err != nil {
		return nil, err
	}
	last, err := src.LastMessagesByPeer(user)
	if err != nil {
		return nil, err
	}

	out := make([]models.ConversationSummary, 0, len(last))
	for peer, m := range last {
		out = append(out, models.ConversationSummary{
			PeerID:        peer,
			LastMessage:   m,
			LastMessageAt: m.CreatedAt,
			UnreadCount:   unread[peer],
		})
	}
	Sort(out)
	return out, nil
}

// Sort orders summaries by last_message_at descending, ties broken by the
// higher last message id.
func Sort(rows []models.ConversationSummary) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.LastMessage.ID > b.LastMessage.ID
	})
}
