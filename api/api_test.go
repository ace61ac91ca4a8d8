package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edgeee/tweets/api/validator"
	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
	"github.com/neilotoole/slogt"
)

const testMessageID = "84bd9af7-79e6-4027-b284-9d5d875efd5b"

var testMessage = store.Message{
	ID:        uuid.MustParse(testMessageID),
	Author:    store.User{Name: "testuser"},
	Text:      "Hello",
	CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

func TestAPI_listUserMessages(t *testing.T) {
	tests := []struct {
		name       string
		store      *teststore
		wantStatus int
		wantBody   string
	}{
		{
			name: "Unavailable",
			store: &teststore{
				getMessages: func(t *testing.T, userName string) ([]store.UserMessage, error) {
					return nil, store.Unavailable("get messages", errors.New("connection refused"))
				},
			},
			wantStatus: 503,
			wantBody: `{
				"error": "Could not list messages"
			}`,
		},
		{
			name: "Empty",
			store: &teststore{
				getMessages: func(t *testing.T, userName string) ([]store.UserMessage, error) {
					return nil, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"messages": []
			}`,
		},
		{
			name: "OK",
			store: &teststore{
				getMessages: func(t *testing.T, userName string) ([]store.UserMessage, error) {
					if userName != "testuser" {
						t.Errorf("Got userName %q, want testuser", userName)
					}
					return []store.UserMessage{
						{Message: testMessage, LikeCount: 2, Liked: true},
					}, nil
				},
			},
			wantStatus: 200,
			wantBody: `{
				"messages": [
					{
						"id": "84bd9af7-79e6-4027-b284-9d5d875efd5b",
						"text": "Hello",
						"user_name": "testuser",
						"created_at": "2024-01-01T00:00:00Z",
						"like_count": 2,
						"liked": true
					}
				]
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.store.T = t
			api := &API{
				Store:  tt.store,
				Logger: slogt.New(t),
			}

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/users/testuser/messages")
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
		})
	}
}

func TestAPI_listPopularMessages(t *testing.T) {
	s := &teststore{
		T: t,
		getPopularMessages: func(t *testing.T) ([]store.PopularMessage, error) {
			return []store.PopularMessage{
				{Message: testMessage, LikeCount: 3},
			}, nil
		},
	}
	api := &API{
		Store:  s,
		Logger: slogt.New(t),
	}

	srv := httptest.NewServer(api)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/messages/popular")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
	checkBody(t, resp, `{
		"messages": [
			{
				"id": "84bd9af7-79e6-4027-b284-9d5d875efd5b",
				"text": "Hello",
				"user_name": "testuser",
				"created_at": "2024-01-01T00:00:00Z",
				"like_count": 3
			}
		]
	}`)
}

func TestAPI_createMessage(t *testing.T) {
	tests := []struct {
		name        string
		store       *teststore
		req         string
		wantStatus  int
		wantBody    string
		containsLog string
	}{
		{
			name:       "InvalidJSON",
			req:        `not json`,
			wantStatus: 400,
			wantBody: `{
				"error": "Could not decode request body"
			}`,
		},
		{
			name:       "MissingText",
			req:        `{"user_name": "testuser"}`,
			wantStatus: 400,
			wantBody: `{
				"errors": [
					{
						"field": "text",
						"message": "Key: 'request.text' Error:Field validation for 'text' failed on the 'required' tag"
					}
				]
			}`,
		},
		{
			name: "Duplicate",
			req:  `{"text": "hello", "user_name": "testuser"}`,
			store: &teststore{
				save: func(t *testing.T, msg store.Message) error {
					return store.Errorf("save", store.ErrDuplicateID, nil)
				},
			},
			wantStatus: 409,
			wantBody: `{
				"error": "Could not insert message"
			}`,
			containsLog: "save: duplicate message id",
		},
		{
			name: "Unavailable",
			req:  `{"text": "hello", "user_name": "testuser"}`,
			store: &teststore{
				save: func(t *testing.T, msg store.Message) error {
					return store.Unavailable("save", errors.New("connection refused"))
				},
			},
			wantStatus: 503,
			wantBody: `{
				"error": "Could not insert message"
			}`,
			containsLog: "cause=\"connection refused\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if tt.store == nil {
				tt.store = &teststore{}
			}
			tt.store.T = t
			api := &API{
				Store:  tt.store,
				Logger: slog.New(slog.NewTextHandler(buf, nil)),
				Val:    validator.New(),
			}

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			checkBody(t, resp, tt.wantBody)
			checkLog(t, buf, tt.containsLog)
		})
	}
}

func TestAPI_createMessageOK(t *testing.T) {
	var saved store.Message
	s := &teststore{
		T: t,
		save: func(t *testing.T, msg store.Message) error {
			saved = msg
			return nil
		},
	}
	api := &API{
		Store:  s,
		Logger: slogt.New(t),
		Val:    validator.New(),
	}

	srv := httptest.NewServer(api)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(`{
		"text": "hello",
		"user_name": "testuser"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 201)

	if saved.Author.Name != "testuser" || saved.Text != "hello" {
		t.Errorf("Got saved message %+v", saved)
	}
	checkBody(t, resp, `{
		"id": "`+saved.ID.String()+`",
		"text": "hello",
		"user_name": "testuser",
		"created_at": "`+saved.CreatedAt.Format(time.RFC3339Nano)+`",
		"like_count": 0
	}`)
}

func TestAPI_createLike(t *testing.T) {
	tests := []struct {
		name       string
		store      *teststore
		messageID  string
		req        string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "InvalidID",
			messageID:  "not-a-uuid",
			req:        `{"user_name": "testuser"}`,
			wantStatus: 400,
			wantBody: `{
				"error": "Invalid message id"
			}`,
		},
		{
			name:      "NotFound",
			messageID: testMessageID,
			req:       `{"user_name": "testuser"}`,
			store: &teststore{
				like: func(t *testing.T, messageID uuid.UUID, userName string) error {
					return store.Errorf("like", store.ErrNotFound, nil)
				},
			},
			wantStatus: 404,
			wantBody: `{
				"error": "Could not like message"
			}`,
		},
		{
			name:      "Conflict",
			messageID: testMessageID,
			req:       `{"user_name": "testuser"}`,
			store: &teststore{
				like: func(t *testing.T, messageID uuid.UUID, userName string) error {
					return store.Errorf("like", store.ErrConflictRetryExhausted, nil)
				},
			},
			wantStatus: 409,
			wantBody: `{
				"error": "Could not like message"
			}`,
		},
		{
			name:      "OK",
			messageID: testMessageID,
			req:       `{"user_name": "testuser2"}`,
			store: &teststore{
				like: func(t *testing.T, messageID uuid.UUID, userName string) error {
					if messageID.String() != testMessageID {
						t.Errorf("Got messageID %s, want %s", messageID, testMessageID)
					}
					if userName != "testuser2" {
						t.Errorf("Got userName %q, want testuser2", userName)
					}
					return nil
				},
			},
			wantStatus: 204,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.store == nil {
				tt.store = &teststore{}
			}
			tt.store.T = t
			api := &API{
				Store:  tt.store,
				Logger: slogt.New(t),
				Val:    validator.New(),
			}

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/messages/"+tt.messageID+"/likes", "application/json", strings.NewReader(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			checkStatus(t, resp.StatusCode, tt.wantStatus)
			if tt.wantBody != "" {
				checkBody(t, resp, tt.wantBody)
			}
		})
	}
}

func TestAPI_deleteLike(t *testing.T) {
	called := false
	s := &teststore{
		T: t,
		unlike: func(t *testing.T, messageID uuid.UUID, userName string) error {
			called = true
			if userName != "testuser2" {
				t.Errorf("Got userName %q, want testuser2", userName)
			}
			return nil
		},
	}
	api := &API{
		Store:  s,
		Logger: slogt.New(t),
	}

	srv := httptest.NewServer(api)
	defer srv.Close()

	req, _ := http.NewRequest("DELETE", srv.URL+"/messages/"+testMessageID+"/likes/testuser2", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 204)
	if !called {
		t.Error("Unlike was not called")
	}
}

func TestAPI_users(t *testing.T) {
	users := &testusers{T: t, users: map[string]store.User{}}
	api := &API{
		Users:  users,
		Logger: slogt.New(t),
		Val:    validator.New(),
	}

	srv := httptest.NewServer(api)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/users/testuser")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 404)
	checkBody(t, resp, `{"error": "Could not get user"}`)

	resp, err = http.Post(srv.URL+"/users", "application/json", strings.NewReader(`{"name": "test/user"}`))
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 400)

	resp, err = http.Post(srv.URL+"/users", "application/json", strings.NewReader(`{"name": "testuser"}`))
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 201)

	resp, err = http.Get(srv.URL + "/users/testuser")
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
	created := users.users["testuser"].CreatedAt.Format(time.RFC3339Nano)
	checkBody(t, resp, `{"name": "testuser", "created_at": "`+created+`"}`)
}

type teststore struct {
	T                  *testing.T
	save               func(t *testing.T, msg store.Message) error
	like               func(t *testing.T, messageID uuid.UUID, userName string) error
	unlike             func(t *testing.T, messageID uuid.UUID, userName string) error
	getMessages        func(t *testing.T, userName string) ([]store.UserMessage, error)
	getPopularMessages func(t *testing.T) ([]store.PopularMessage, error)
}

func (s *teststore) Save(_ context.Context, msg store.Message) error {
	return s.save(s.T, msg)
}

func (s *teststore) Like(_ context.Context, messageID uuid.UUID, userName string) error {
	return s.like(s.T, messageID, userName)
}

func (s *teststore) Unlike(_ context.Context, messageID uuid.UUID, userName string) error {
	return s.unlike(s.T, messageID, userName)
}

func (s *teststore) CountLikes(context.Context, uuid.UUID) (int, error) {
	s.T.Error("CountLikes should not be called")
	return 0, nil
}

func (s *teststore) HasLiked(context.Context, uuid.UUID, string) (bool, error) {
	s.T.Error("HasLiked should not be called")
	return false, nil
}

func (s *teststore) GetMessages(_ context.Context, userName string) ([]store.UserMessage, error) {
	return s.getMessages(s.T, userName)
}

func (s *teststore) GetPopularMessages(_ context.Context) ([]store.PopularMessage, error) {
	return s.getPopularMessages(s.T)
}

type testusers struct {
	T     *testing.T
	users map[string]store.User
}

func (u *testusers) SaveUser(_ context.Context, user store.User) error {
	u.users[user.Name] = user
	return nil
}

func (u *testusers) GetUser(_ context.Context, name string) (store.User, error) {
	user, ok := u.users[name]
	if !ok {
		return store.User{}, store.Errorf("get user", store.ErrNotFound, nil)
	}
	return user, nil
}

func checkStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("Got HTTP status %d, want %d", got, want)
	}
}

func checkBody(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	gotBody := normalizeJSON(t, resp.Body)
	wantBody := normalizeJSON(t, bytes.NewReader([]byte(want)))
	if gotBody != wantBody {
		t.Errorf("Body does not match\nGot\n  %s\n\nWant\n  %s", gotBody, wantBody)
	}
}

func checkLog(t *testing.T, buffer *bytes.Buffer, want string) {
	t.Helper()

	if s := buffer.String(); want != "" && !strings.Contains(s, want) {
		t.Errorf("Log does not contain  %s\n", want)
	}
}

func normalizeJSON(t *testing.T, r io.Reader) string {
	t.Helper()
	var buf bytes.Buffer
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Could not read JSON: %v", err)
	}
	if err := json.Indent(&buf, b, "  ", "  "); err != nil {
		t.Fatalf("Could not indent JSON: %v", err)
	}
	return strings.TrimSpace(buf.String())
}
