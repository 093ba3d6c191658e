package models

// ChannelMessageView is a channel message with the author's display fields.
type ChannelMessageView struct {
	ChannelMessage
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

type PrivateMessageView struct {
	PrivateMessage
	SenderUsername        string `json:"sender_username"`
	SenderProfileImage    string `json:"sender_profile_image"`
	RecipientUsername     string `json:"recipient_username"`
	RecipientProfileImage string `json:"recipient_profile_image"`
}

type ConversationView struct {
	ConversationSummary
	OtherUserName         string `json:"other_user_name"`
	OtherUserProfileImage string `json:"other_user_profile_image"`
}

type ActivityView struct {
	ActivityRecord
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

// Stats is a point-in-time count of stored rows.
type Stats struct {
	ChannelMessages uint64 `json:"channel_messages"`
	PrivateMessages uint64 `json:"private_messages"`
	UnreadMessages  uint64 `json:"unread_messages"`
	ActivityRecords uint64 `json:"activity_records"`
	Users           uint64 `json:"users"`
	Channels        uint64 `json:"channels"`
	LastID          uint64 `json:"last_id"`
}
