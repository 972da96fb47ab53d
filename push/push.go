// Package push delivers Web Push notifications using VAPID keys. There is no
// third-party push service involved; payloads go straight to the endpoints
// the browsers registered.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/yappynotes/server/api"
)

// Sender sends Web Push notifications. The zero value is an unconfigured
// sender whose Send is never called by the API layer.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string
}

// notificationTTL is how long (seconds) the push service may retry delivery.
const notificationTTL = 60

// New returns a Sender. Empty keys yield an unconfigured sender; Configured
// reports false and delivery is skipped.
func New(publicKey, privateKey, subscriber string) *Sender {
	if subscriber == "" {
		subscriber = "mailto:app@yappynotes.local"
	}
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
}

// Configured reports whether a VAPID key pair is present.
func (s *Sender) Configured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// PublicKey returns the VAPID public key clients subscribe with.
func (s *Sender) PublicKey() string {
	return s.publicKey
}

// Send encrypts and delivers one notification to one subscription.
func (s *Sender) Send(ctx context.Context, sub api.PushSubscription, n api.Notification) error {
	payload, err := json.Marshal(struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Icon  string `json:"icon"`
	}{
		Title: n.Title,
		Body:  n.Body,
		Icon:  "/icon-192.png",
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             notificationTTL,
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
