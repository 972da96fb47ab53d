package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
)

const passcodeKey = "passcode"

// errPasscodeNotConfigured is returned when no passcode is stored and no
// default was supplied at startup.
var errPasscodeNotConfigured = errors.New("passcode not configured")

// passcode returns the current passcode, lazily seeding the config entry
// from the configured default on first read.
func (a *API) passcode(ctx context.Context) (string, error) {
	code, err := a.DB.GetConfig(ctx, passcodeKey)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if a.DefaultPasscode == "" {
		return "", errPasscodeNotConfigured
	}
	if err := a.DB.SetConfig(ctx, passcodeKey, a.DefaultPasscode); err != nil {
		return "", err
	}
	return a.DefaultPasscode, nil
}

func (a *API) getPasscode(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Passcode string `json:"passcode"`
	}

	code, err := a.passcode(r.Context())
	if err != nil {
		if errors.Is(err, errPasscodeNotConfigured) {
			a.respondError(w, http.StatusInternalServerError, err, "Passcode not configured")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not get passcode")
		return
	}
	a.respond(w, http.StatusOK, response{Passcode: code})
}

func (a *API) verifyPasscode(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Passcode string `json:"passcode" validate:"required"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if !a.validateBody(w, &body) {
		return
	}

	code, err := a.passcode(r.Context())
	if err != nil {
		if errors.Is(err, errPasscodeNotConfigured) {
			a.respondError(w, http.StatusInternalServerError, err, "Passcode not configured")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not verify passcode")
		return
	}

	if subtle.ConstantTimeCompare([]byte(body.Passcode), []byte(code)) != 1 {
		a.respondError(w, http.StatusUnauthorized, errors.New("passcode mismatch"), "Incorrect passcode")
		return
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}

func (a *API) updatePasscode(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Passcode string `json:"passcode" validate:"required"`
		UserID   string `json:"user_id" validate:"required"`
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
		a.respondError(w, http.StatusInternalServerError, err, "Could not update passcode")
		return
	}
	if !a.Policy.CanUpdatePasscode(requester) {
		a.respondError(w, http.StatusForbidden, errors.New("requester is not admin"), "Only admin can update passcode")
		return
	}

	if err := a.DB.SetConfig(r.Context(), passcodeKey, body.Passcode); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not update passcode")
		return
	}
	a.respond(w, http.StatusOK, successResponse{Success: true})
}
