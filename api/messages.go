package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

// defaultPageSize defines the number of messages returned when the client
// does not specify a limit.
var defaultPageSize = 50

// replySnippetLen caps the denormalized text carried on a reply.
const replySnippetLen = 100

// viewer resolves the optional user id on a request into the acting user.
// Unknown ids still act as a non-admin viewer with that id, so visibility
// filtering keeps working for users deleted mid-session.
func (a *API) viewer(r *http.Request, userID string) (User, error) {
	if userID == "" {
		return User{}, nil
	}
	u, err := a.DB.GetUser(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		return User{ID: userID}, nil
	}
	return u, err
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages []Message `json:"messages"`
		HasMore  bool      `json:"has_more"`
	}

	limit := defaultPageSize
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			a.respondError(w, http.StatusBadRequest, errors.New("invalid limit"), "Invalid limit")
			return
		}
		limit = n
	}

	view, err := a.viewer(r, r.URL.Query().Get("user_id"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
		return
	}

	var before time.Time
	if id := r.URL.Query().Get("before"); id != "" {
		cursor, err := a.DB.GetMessage(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			// Unresolvable cursor yields an empty page, not an error.
			a.respond(w, http.StatusOK, response{Messages: []Message{}, HasMore: false})
			return
		}
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
			return
		}
		before = cursor.CreatedAt
	}

	msgs, hasMore, served := a.listFromCache(r, view, limit, before)
	if !served {
		page := MessagePage{Limit: limit + 1, Before: before}
		if view.ID != "" && !view.IsAdmin {
			page.HiddenFrom = view.ID
		}
		msgs, err = a.DB.ListMessages(r.Context(), page)
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
			return
		}
		hasMore = len(msgs) > limit
		if hasMore {
			msgs = msgs[:limit]
		}
	}

	if view.IsAdmin {
		for i := range msgs {
			msgs[i].IsDeleted = len(msgs[i].DeletedFor) > 0
		}
	}

	// Newest-first internally, oldest-first for delivery.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []Message{}
	}
	a.respond(w, http.StatusOK, response{Messages: msgs, HasMore: hasMore})
}

// listFromCache serves the first page from the cache when it holds enough
// visible messages to also answer the has-more question. Any shortfall or
// cache failure falls back to the database.
func (a *API) listFromCache(r *http.Request, view User, limit int, before time.Time) ([]Message, bool, bool) {
	if !before.IsZero() {
		return nil, false, false
	}
	cached, err := a.Cache.ListMessages(r.Context())
	if err != nil {
		a.Logger.Error("Could not list cached messages", "error", err.Error())
		return nil, false, false
	}
	visible := make([]Message, 0, len(cached))
	for _, msg := range cached {
		if a.Policy.Visible(msg, view) {
			visible = append(visible, msg)
		}
	}
	if len(visible) <= limit {
		return nil, false, false
	}
	a.Logger.Info("Served messages from cache", "count", limit)
	return visible[:limit], true, true
}

func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID           string `json:"user_id" validate:"required"`
		Text             string `json:"text"`
		ImageBase64      string `json:"image_base64"`
		AudioBase64      string `json:"audio_base64"`
		ReplyToMessageID string `json:"reply_to_message_id"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}
	if !a.respondValidationErrors(w, a.Val.ExactlyOne(map[string]string{
		"text":         body.Text,
		"image_base64": body.ImageBase64,
		"audio_base64": body.AudioBase64,
	})) {
		return
	}

	sender, err := a.DB.GetUser(r.Context(), body.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, "Sender not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert message")
		return
	}

	msg := Message{
		UserID:      body.UserID,
		Text:        body.Text,
		ImageBase64: body.ImageBase64,
		AudioBase64: body.AudioBase64,
		CreatedAt:   time.Now().UTC(),
	}

	if body.ReplyToMessageID != "" {
		target, err := a.DB.GetMessage(r.Context(), body.ReplyToMessageID)
		switch {
		case err == nil:
			msg.ReplyToMessageID = target.ID
			msg.ReplyToUserID = target.UserID
			msg.ReplyToText = replySnippet(target)
		case errors.Is(err, ErrNotFound):
			// An unresolvable reply target is dropped silently.
		default:
			a.respondError(w, http.StatusInternalServerError, err, "Could not insert message")
			return
		}
	}

	msg, err = a.DB.InsertMessage(r.Context(), msg)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert message")
		return
	}

	if err := a.Cache.InsertMessage(r.Context(), msg); err != nil {
		a.Logger.Error("Could not cache message", "error", err.Error())
	}

	a.notifySubscribers(r.Context(), sender.ID, Notification{
		Title: "Yappy Notes",
		Body:  sender.Name + ": " + previewText(msg),
	})

	a.respond(w, http.StatusCreated, msg)
}

// replySnippet captures what the reply bubble shows: up to 100 characters of
// text, or a media marker.
func replySnippet(target Message) string {
	switch {
	case target.Text != "":
		runes := []rune(target.Text)
		if len(runes) > replySnippetLen {
			runes = runes[:replySnippetLen]
		}
		return string(runes)
	case target.ImageBase64 != "":
		return "Photo"
	case target.AudioBase64 != "":
		return "Voice note"
	}
	return ""
}

func previewText(msg Message) string {
	switch {
	case msg.Text != "":
		return msg.Text
	case msg.ImageBase64 != "":
		return "Photo"
	default:
		return "Voice note"
	}
}

// clearMessages wipes the chat. The admin hard-deletes every message; any
// other user only hides the full history from themselves.
func (a *API) clearMessages(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	view, err := a.viewer(r, body.UserID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not clear messages")
		return
	}

	if a.Policy.CanModerate(view) {
		err = a.DB.DeleteAllMessages(r.Context())
	} else {
		err = a.DB.HideAllMessages(r.Context(), view.ID)
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not clear messages")
		return
	}

	if err := a.Cache.Flush(r.Context()); err != nil {
		a.Logger.Error("Could not flush message cache", "error", err.Error())
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

// hideMessage marks a single message deleted. Admin only; the message stays
// in place and shows up as deleted on the admin's own listing.
func (a *API) hideMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
	}

	messageID := r.PathValue("messageID")
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	requester, err := a.DB.GetUser(r.Context(), body.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete message")
		return
	}
	if !a.Policy.CanModerate(requester) {
		a.respondError(w, http.StatusForbidden, errors.New("requester is not admin"), "Only admin can delete messages")
		return
	}

	if _, err := a.DB.GetMessage(r.Context(), messageID); err != nil {
		if errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, "Message not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete message")
		return
	}

	if err := a.DB.HideMessage(r.Context(), messageID, body.UserID); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete message")
		return
	}

	if err := a.Cache.Flush(r.Context()); err != nil {
		a.Logger.Error("Could not flush message cache", "error", err.Error())
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

// toggleReaction adds the (user, emoji) reaction if absent and removes it if
// present, returning the updated reaction list.
func (a *API) toggleReaction(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			UserID string `json:"user_id" validate:"required"`
			Emoji  string `json:"emoji" validate:"required"`
		}
		response struct {
			Success   bool       `json:"success"`
			Reactions []Reaction `json:"reactions"`
		}
	)

	messageID := r.PathValue("messageID")
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	if _, err := a.DB.GetMessage(r.Context(), messageID); err != nil {
		if errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, "Message not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not update reaction")
		return
	}

	reactions, err := a.DB.ToggleReaction(r.Context(), messageID, body.UserID, body.Emoji)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not update reaction")
		return
	}
	if reactions == nil {
		reactions = []Reaction{}
	}

	if err := a.Cache.Flush(r.Context()); err != nil {
		a.Logger.Error("Could not flush message cache", "error", err.Error())
	}
	a.respond(w, http.StatusOK, response{Success: true, Reactions: reactions})
}

// markSeen stamps every unseen message from other senders. The stamp is set
// once; already-seen messages are untouched.
func (a *API) markSeen(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			UserID string `json:"user_id" validate:"required"`
		}
		response struct {
			Success     bool `json:"success"`
			MarkedCount int  `json:"marked_count"`
		}
	)

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	count, err := a.DB.MarkSeen(r.Context(), body.UserID, time.Now().UTC())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not mark messages as seen")
		return
	}

	if count > 0 {
		if err := a.Cache.Flush(r.Context()); err != nil {
			a.Logger.Error("Could not flush message cache", "error", err.Error())
		}
	}
	a.respond(w, http.StatusOK, response{Success: true, MarkedCount: count})
}
