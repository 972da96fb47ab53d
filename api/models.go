package api

import (
	"errors"
	"time"
)

// Sentinel errors returned by storage implementations. Handlers map them to
// HTTP statuses with errors.Is.
var (
	// ErrNotFound indicates that a record with the given identifier does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrSoleUser indicates an attempt to delete the only remaining user.
	ErrSoleUser = errors.New("sole user")
)

// A User represents a registered chat participant. At most one user carries
// the admin flag at any time.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// A Message represents a persisted message. Exactly one of Text, ImageBase64
// and AudioBase64 is set. DeletedFor holds the ids of users the message is
// hidden from; it is never sent to clients.
type Message struct {
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
	Reactions        []Reaction `json:"reactions"`
	DeletedFor       []string   `json:"-"`

	// IsDeleted is set on listings for the admin only: it reports whether
	// any user has hidden the message, without revealing who.
	IsDeleted bool `json:"is_deleted,omitempty"`
}

// A Reaction represents a single emoji reaction by a user on a message. A
// (message, user, emoji) triple exists at most once; toggling it again
// removes it.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// A PushSubscription is a Web Push registration, keyed by its endpoint URL.
// NotifyUserIDs lists the senders this subscriber wants notifications for.
type PushSubscription struct {
	Endpoint      string           `json:"endpoint"`
	UserID        string           `json:"user_id"`
	Keys          SubscriptionKeys `json:"keys"`
	NotifyUserIDs []string         `json:"notify_user_ids"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// SubscriptionKeys holds the client keys needed to encrypt a push payload.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// A Notification is the payload handed to the Pusher.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// A MessagePage describes one page of a message listing. Messages are
// fetched newest first. A zero Before means no cursor. A non-empty
// HiddenFrom excludes messages hidden from that user.
type MessagePage struct {
	Limit      int
	Before     time.Time
	HiddenFrom string
}
