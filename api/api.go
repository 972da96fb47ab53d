package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yappynotes/server/api/validator"
)

// A DB provides a storage layer that persists users, messages, config
// entries and push subscriptions.
type DB interface {
	// Users.
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	FindUserByName(ctx context.Context, name string) (User, error)
	CountUsers(ctx context.Context) (int, error)
	HasAdmin(ctx context.Context) (bool, error)
	InsertUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteAllUsers(ctx context.Context) error
	SetAdmin(ctx context.Context, id string) error

	// Messages.
	ListMessages(ctx context.Context, page MessagePage) ([]Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	InsertMessage(ctx context.Context, msg Message) (Message, error)
	HideMessage(ctx context.Context, messageID, userID string) error
	HideAllMessages(ctx context.Context, userID string) error
	DeleteAllMessages(ctx context.Context) error
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) ([]Reaction, error)
	MarkSeen(ctx context.Context, userID string, at time.Time) (int, error)

	// Config.
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Push subscriptions.
	UpsertSubscription(ctx context.Context, sub PushSubscription) error
	ListSubscribersOf(ctx context.Context, senderUserID string) ([]PushSubscription, error)
}

// A Cache provides a storage layer that caches the newest messages.
type Cache interface {
	ListMessages(ctx context.Context) ([]Message, error)
	InsertMessage(ctx context.Context, msg Message) error
	Flush(ctx context.Context) error
}

// A Pusher delivers Web Push notifications to a single subscription.
type Pusher interface {
	Configured() bool
	PublicKey() string
	Send(ctx context.Context, sub PushSubscription, n Notification) error
}

// Aliases so handler code and tests can refer to validation types without a
// second import.
type (
	Validator       = validator.Validator
	ValidationError = validator.ValidationError
)

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	Push   Pusher
	Val    *Validator

	// DefaultPasscode seeds the config collection on first read when no
	// passcode has been stored yet.
	DefaultPasscode string

	Policy Policy

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /passcode", a.getPasscode)
	mux.HandleFunc("POST /passcode/verify", a.verifyPasscode)
	mux.HandleFunc("PUT /passcode", a.updatePasscode)

	mux.HandleFunc("GET /users", a.listUsers)
	mux.HandleFunc("POST /users", a.createUser)
	mux.HandleFunc("DELETE /users", a.resetUsers)
	mux.HandleFunc("DELETE /users/{userID}", a.deleteUser)
	mux.HandleFunc("PUT /users/admin", a.setAdmin)

	mux.HandleFunc("GET /messages", a.listMessages)
	mux.HandleFunc("POST /messages", a.createMessage)
	mux.HandleFunc("DELETE /messages", a.clearMessages)
	mux.HandleFunc("DELETE /messages/{messageID}", a.hideMessage)
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.toggleReaction)
	mux.HandleFunc("POST /messages/seen", a.markSeen)

	mux.HandleFunc("POST /push/subscriptions", a.subscribePush)
	mux.HandleFunc("GET /push/vapid", a.vapidKey)
	mux.HandleFunc("POST /push/opened", a.notifyOpened)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return true
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	return a.respondValidationErrors(w, errs)
}

func (a *API) respondValidationErrors(w http.ResponseWriter, errs []ValidationError) bool {
	type response struct {
		Errors []ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

type successResponse struct {
	Success bool `json:"success"`
}
