package api

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.DB.ListUsers(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list users")
		return
	}
	if users == nil {
		users = []User{}
	}
	a.respond(w, http.StatusOK, users)
}

// createUser creates a user, or returns the existing user with the same name
// (case-insensitive). The first user ever created becomes the admin.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Name string `json:"name" validate:"required"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if !a.validateBody(w, &body) {
		return
	}

	existing, err := a.DB.FindUserByName(r.Context(), body.Name)
	if err == nil {
		a.respond(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, ErrNotFound) {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create user")
		return
	}

	count, err := a.DB.CountUsers(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create user")
		return
	}

	user, err := a.DB.InsertUser(r.Context(), User{
		Name:      body.Name,
		IsAdmin:   count == 0,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create user")
		return
	}
	a.respond(w, http.StatusCreated, user)
}

// deleteUser removes a user. Deleting the admin promotes another user first
// so the chat is never adminless; deleting the only remaining user is
// refused.
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	type request struct {
		RequestedByUserID string `json:"requested_by_user_id" validate:"required"`
	}

	targetID := r.PathValue("userID")
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	requester, err := a.DB.GetUser(r.Context(), body.RequestedByUserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete user")
		return
	}
	if !a.Policy.CanManageUsers(requester) {
		a.respondError(w, http.StatusForbidden, errors.New("requester is not admin"), "Only admin can delete users")
		return
	}

	if _, err := a.DB.GetUser(r.Context(), targetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, "User not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete user")
		return
	}

	if err := a.DB.DeleteUser(r.Context(), targetID); err != nil {
		if errors.Is(err, ErrSoleUser) {
			a.respondError(w, http.StatusBadRequest, err, "Cannot delete the only user")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete user")
		return
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

// setAdmin moves the admin role to the given user. Before any admin exists
// anyone may bootstrap one; afterwards only the current admin may reassign.
func (a *API) setAdmin(w http.ResponseWriter, r *http.Request) {
	type request struct {
		AdminUserID       string `json:"admin_user_id" validate:"required"`
		RequestedByUserID string `json:"requested_by_user_id"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	hasAdmin, err := a.DB.HasAdmin(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not set admin")
		return
	}

	var requester User
	if body.RequestedByUserID != "" {
		requester, err = a.DB.GetUser(r.Context(), body.RequestedByUserID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusInternalServerError, err, "Could not set admin")
			return
		}
	}
	if !a.Policy.CanAssignAdmin(requester, hasAdmin) {
		a.respondError(w, http.StatusForbidden, errors.New("requester is not admin"), "Only the current admin can assign a new admin")
		return
	}

	if err := a.DB.SetAdmin(r.Context(), body.AdminUserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, "User not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not set admin")
		return
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

// resetUsers deletes every user. Admin only.
func (a *API) resetUsers(w http.ResponseWriter, r *http.Request) {
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

	requester, err := a.DB.GetUser(r.Context(), body.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		a.respondError(w, http.StatusInternalServerError, err, "Could not reset users")
		return
	}
	if !a.Policy.CanManageUsers(requester) {
		a.respondError(w, http.StatusForbidden, errors.New("requester is not admin"), "Only admin can reset users")
		return
	}

	if err := a.DB.DeleteAllUsers(r.Context()); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not reset users")
		return
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}
