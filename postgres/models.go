package postgres

import (
	"time"

	"github.com/yappynotes/server/api"
)

// A user represents a chat participant in the database.
type user struct {
	ID        string    `bun:",pk"`
	Name      string    `bun:",notnull,unique"`
	IsAdmin   bool      `bun:",notnull,default:false"`
	CreatedAt time.Time `bun:",nullzero,default:now()"`
}

// A message represents a message in the database. deleted_for carries the
// ids of users the message is hidden from.
type message struct {
	ID               string     `bun:",pk"`
	UserID           string     `bun:",notnull"`
	MessageText      string     `bun:"message_text"`
	ImageBase64      string     `bun:"image_base64"`
	AudioBase64      string     `bun:"audio_base64"`
	ReplyToMessageID string     `bun:"reply_to_message_id"`
	ReplyToUserID    string     `bun:"reply_to_user_id"`
	ReplyToText      string     `bun:"reply_to_text"`
	DeletedFor       []string   `bun:"deleted_for,array,notnull,default:'{}'"`
	SeenAt           *time.Time `bun:"seen_at"`
	CreatedAt        time.Time  `bun:",nullzero,default:now()"`
	Reactions        []reaction `bun:"rel:has-many,join:id=message_id"`
}

type reaction struct {
	ID        string    `bun:",pk"`
	MessageID string    `bun:",notnull"`
	UserID    string    `bun:",notnull"`
	Emoji     string    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,default:now()"`
}

// A configEntry is a singleton key-value setting, currently only the
// passcode.
type configEntry struct {
	Key       string    `bun:",pk"`
	Value     string    `bun:",notnull"`
	UpdatedAt time.Time `bun:",nullzero,default:now()"`
}

// A pushSubscription is a Web Push registration keyed by endpoint.
type pushSubscription struct {
	Endpoint      string    `bun:",pk"`
	UserID        string    `bun:",notnull"`
	P256dh        string    `bun:"p256dh,notnull"`
	Auth          string    `bun:",notnull"`
	NotifyUserIDs []string  `bun:"notify_user_ids,array,notnull,default:'{}'"`
	UpdatedAt     time.Time `bun:",nullzero,default:now()"`
}

func (u user) APIUser() api.User {
	return api.User{
		ID:        u.ID,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func (m message) APIMessage() api.Message {
	reactions := make([]api.Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		reactions[i] = r.APIReaction()
	}
	deletedFor := m.DeletedFor
	if deletedFor == nil {
		deletedFor = []string{}
	}

	return api.Message{
		ID:               m.ID,
		UserID:           m.UserID,
		Text:             m.MessageText,
		ImageBase64:      m.ImageBase64,
		AudioBase64:      m.AudioBase64,
		CreatedAt:        m.CreatedAt,
		SeenAt:           m.SeenAt,
		ReplyToMessageID: m.ReplyToMessageID,
		ReplyToUserID:    m.ReplyToUserID,
		ReplyToText:      m.ReplyToText,
		Reactions:        reactions,
		DeletedFor:       deletedFor,
	}
}

func (r reaction) APIReaction() api.Reaction {
	return api.Reaction{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		CreatedAt: r.CreatedAt,
	}
}

func (s pushSubscription) APISubscription() api.PushSubscription {
	notify := s.NotifyUserIDs
	if notify == nil {
		notify = []string{}
	}
	return api.PushSubscription{
		Endpoint: s.Endpoint,
		UserID:   s.UserID,
		Keys: api.SubscriptionKeys{
			P256dh: s.P256dh,
			Auth:   s.Auth,
		},
		NotifyUserIDs: notify,
		UpdatedAt:     s.UpdatedAt,
	}
}
