package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func (a *API) subscribePush(w http.ResponseWriter, r *http.Request) {
	type (
		subscription struct {
			Endpoint string           `json:"endpoint" validate:"required"`
			Keys     SubscriptionKeys `json:"keys"`
		}
		request struct {
			UserID        string       `json:"user_id" validate:"required"`
			Subscription  subscription `json:"subscription" validate:"required"`
			NotifyUserIDs []string     `json:"notify_user_ids"`
		}
	)

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	if body.NotifyUserIDs == nil {
		body.NotifyUserIDs = []string{}
	}
	err := a.DB.UpsertSubscription(r.Context(), PushSubscription{
		Endpoint:      body.Subscription.Endpoint,
		UserID:        body.UserID,
		Keys:          body.Subscription.Keys,
		NotifyUserIDs: body.NotifyUserIDs,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not save subscription")
		return
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

func (a *API) vapidKey(w http.ResponseWriter, r *http.Request) {
	type response struct {
		PublicKey string `json:"public_key"`
	}

	if !a.Push.Configured() {
		a.respondError(w, http.StatusServiceUnavailable, errors.New("push not configured"), "Push not configured")
		return
	}
	a.respond(w, http.StatusOK, response{PublicKey: a.Push.PublicKey()})
}

// notifyOpened tells subscribers of a user that they just unlocked the app.
func (a *API) notifyOpened(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
	}

	if !a.Push.Configured() {
		a.respond(w, http.StatusOK, successResponse{Success: true})
		return
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	name := "Someone"
	user, err := a.DB.GetUser(r.Context(), body.UserID)
	switch {
	case err == nil:
		name = user.Name
	case !errors.Is(err, ErrNotFound):
		a.respondError(w, http.StatusInternalServerError, err, "Could not notify")
		return
	}

	a.notifySubscribers(r.Context(), body.UserID, Notification{
		Title: "Yappy Notes",
		Body:  name + " opened the app",
	})
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

// notifySubscribers pushes n to everyone subscribed to senderUserID.
// Delivery failures are logged; they never fail the triggering request.
func (a *API) notifySubscribers(ctx context.Context, senderUserID string, n Notification) {
	if !a.Push.Configured() {
		return
	}

	subs, err := a.DB.ListSubscribersOf(ctx, senderUserID)
	if err != nil {
		a.Logger.Error("Could not list push subscribers", "error", err.Error())
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := a.Push.Send(ctx, sub, n); err != nil {
				a.Logger.Error("Could not send push", "endpoint", sub.Endpoint, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
}
