// Package api serves the engagement store over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/edgeee/tweets/api/validator"
	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
)

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	Store  store.EngagementStore
	Users  store.UserDirectory
	Val    *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /messages", a.createMessage)
	mux.HandleFunc("GET /messages/popular", a.listPopularMessages)
	mux.HandleFunc("POST /messages/{messageID}/likes", a.createLike)
	mux.HandleFunc("DELETE /messages/{messageID}/likes/{userName}", a.deleteLike)
	mux.HandleFunc("GET /users/{userName}/messages", a.listUserMessages)
	mux.HandleFunc("POST /users", a.createUser)
	mux.HandleFunc("GET /users/{userName}", a.getUser)

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
	attrs := []any{"error", err.Error()}
	var se *store.Error
	if errors.As(err, &se) && se.Err != nil {
		attrs = append(attrs, "cause", se.Err.Error())
	}
	a.Logger.Error("Error", attrs...)
	a.respond(w, status, response{Error: msg})
}

// respondStoreError maps the kind of a store error to an HTTP status.
func (a *API) respondStoreError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateID), errors.Is(err, store.ErrConflictRetryExhausted):
		status = http.StatusConflict
	case errors.Is(err, store.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	a.respondError(w, status, err, msg)
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, body any) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return a.validateBody(w, body)
}

func (a *API) validateBody(w http.ResponseWriter, s any) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

func (a *API) messageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("messageID"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Invalid message id")
		return uuid.Nil, false
	}
	return id, true
}

func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Text     string `json:"text" validate:"required,max=280"`
		UserName string `json:"user_name" validate:"required"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	msg := store.NewMessage(body.UserName, body.Text)
	if err := a.Store.Save(r.Context(), msg); err != nil {
		a.respondStoreError(w, err, "Could not insert message")
		return
	}

	a.respond(w, http.StatusCreated, newMessage(msg, 0))
}

func (a *API) createLike(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserName string `json:"user_name" validate:"required"`
	}

	id, ok := a.messageID(w, r)
	if !ok {
		return
	}
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	if err := a.Store.Like(r.Context(), id, body.UserName); err != nil {
		a.respondStoreError(w, err, "Could not like message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteLike(w http.ResponseWriter, r *http.Request) {
	id, ok := a.messageID(w, r)
	if !ok {
		return
	}

	if err := a.Store.Unlike(r.Context(), id, r.PathValue("userName")); err != nil {
		a.respondStoreError(w, err, "Could not unlike message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listUserMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages []UserMessage `json:"messages"`
	}

	msgs, err := a.Store.GetMessages(r.Context(), r.PathValue("userName"))
	if err != nil {
		a.respondStoreError(w, err, "Could not list messages")
		return
	}
	a.Logger.Info("Got user messages", "count", len(msgs))

	res := response{Messages: make([]UserMessage, len(msgs))}
	for i, m := range msgs {
		res.Messages[i] = newUserMessage(m)
	}
	a.respond(w, http.StatusOK, res)
}

func (a *API) listPopularMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages []Message `json:"messages"`
	}

	msgs, err := a.Store.GetPopularMessages(r.Context())
	if err != nil {
		a.respondStoreError(w, err, "Could not list popular messages")
		return
	}

	res := response{Messages: make([]Message, len(msgs))}
	for i, m := range msgs {
		res.Messages[i] = newMessage(m.Message, m.LikeCount)
	}
	a.respond(w, http.StatusOK, res)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Name string `json:"name" validate:"required,excludesall=/:"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	u := store.User{Name: body.Name, CreatedAt: store.Timestamp(time.Now())}
	if err := a.Users.SaveUser(r.Context(), u); err != nil {
		a.respondStoreError(w, err, "Could not save user")
		return
	}
	a.respond(w, http.StatusCreated, newUser(u))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.Users.GetUser(r.Context(), r.PathValue("userName"))
	if err != nil {
		a.respondStoreError(w, err, "Could not get user")
		return
	}
	a.respond(w, http.StatusOK, newUser(u))
}
