package redis

import (
	"time"

	"github.com/yappynotes/server/api"
)

// A message is the cached form of a message. It is a private wire format:
// unlike the API type it serializes the hidden-for list, which the cache
// needs to filter listings per viewer.
type message struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Text             string     `json:"text,omitempty"`
	ImageBase64      string     `json:"image_base64,omitempty"`
	AudioBase64      string     `json:"audio_base64,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	SeenAt           *time.Time `json:"seen_at,omitempty"`
	ReplyToMessageID string     `json:"reply_to_message_id,omitempty"`
	ReplyToUserID    string     `json:"reply_to_user_id,omitempty"`
	ReplyToText      string     `json:"reply_to_text,omitempty"`
	Reactions        []reaction `json:"reactions"`
	DeletedFor       []string   `json:"deleted_for"`
}

type reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

func fromAPIMessage(m api.Message) message {
	reactions := make([]reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		reactions[i] = reaction(r)
	}
	deletedFor := m.DeletedFor
	if deletedFor == nil {
		deletedFor = []string{}
	}
	return message{
		ID:               m.ID,
		UserID:           m.UserID,
		Text:             m.Text,
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

func (m message) APIMessage() api.Message {
	reactions := make([]api.Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		reactions[i] = api.Reaction(r)
	}
	deletedFor := m.DeletedFor
	if deletedFor == nil {
		deletedFor = []string{}
	}
	return api.Message{
		ID:               m.ID,
		UserID:           m.UserID,
		Text:             m.Text,
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
