package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
}

type meResponse struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	APIKey string `json:"apiKey"`
}

// decodeCredentials reads and validates {email,password}. Any problem is
// reported as missing credentials.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		return req, false
	}
	return req, true
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	u, err := a.users.Register(r.Context(), req.Email, req.Password)
	RecordAuthAttempt("register", err == nil)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, registerResponse{Message: "User created successfully", UserID: u.ID})
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
	case errors.Is(err, common.ErrorAlreadyExists):
		writeMessage(w, http.StatusConflict, msgEmailTaken)
	default:
		a.log.Error(r.Context(), "register failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	token, err := a.users.Login(r.Context(), req.Email, req.Password)
	RecordAuthAttempt("login", err == nil)
	switch {
	case err == nil:
		a.setSessionCookie(w, token)
		writeMessage(w, http.StatusOK, "Logged in successfully")
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
	case errors.Is(err, common.ErrorUnauthorized):
		writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
	default:
		a.log.Error(r.Context(), "login failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	id, ok := a.session(w, r)
	if !ok {
		return
	}

	u, err := a.users.Me(r.Context(), id.UserID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, meResponse{ID: u.ID, Email: u.Email, APIKey: u.APIKey})
	case errors.Is(err, common.ErrorNotFound):
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
	default:
		a.fail(w, r, err)
	}
}
