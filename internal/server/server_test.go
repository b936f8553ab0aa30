package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"messagely/internal/common"
	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

var testSecret = []byte("test-secret")

// memDB keeps users and messages in memory with the same failure modes as
// the MySQL repositories.
type memDB struct {
	mu       sync.Mutex
	users    map[string]*models.User
	messages []*models.Message
}

type memUsers struct{ db *memDB }

type memMessages struct{ db *memDB }

func (s memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[u.Username]; ok {
		return nil, common.ErrDuplicate
	}
	cp := *u
	s.db.users[u.Username] = &cp
	return u, nil
}

func (s memUsers) PasswordHash(_ context.Context, username string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[username]
	if !ok {
		return "", common.ErrNotFound
	}
	return u.Password, nil
}

func (s memUsers) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[username]
	if !ok {
		return common.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (s memUsers) List(context.Context) ([]models.UserSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.UserSummary{}
	for _, u := range s.db.users {
		out = append(out, u.Summary())
	}
	return out, nil
}

func (s memUsers) Get(_ context.Context, username string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	cp.Password = ""
	return &cp, nil
}

func (s memUsers) MessagesFrom(_ context.Context, username string) ([]models.SentMessage, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.SentMessage{}
	for _, m := range s.db.messages {
		if m.FromUsername == username {
			out = append(out, models.SentMessage{
				ID:     m.ID,
				ToUser: s.db.users[m.ToUsername].Summary(),
				Body:   m.Body,
				SentAt: m.SentAt,
				ReadAt: m.ReadAt,
			})
		}
	}
	return out, nil
}

func (s memUsers) MessagesTo(_ context.Context, username string) ([]models.ReceivedMessage, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.ReceivedMessage{}
	for _, m := range s.db.messages {
		if m.ToUsername == username {
			out = append(out, models.ReceivedMessage{
				ID:       m.ID,
				FromUser: s.db.users[m.FromUsername].Summary(),
				Body:     m.Body,
				SentAt:   m.SentAt,
				ReadAt:   m.ReadAt,
			})
		}
	}
	return out, nil
}

func (s memMessages) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.users[m.FromUsername] == nil || s.db.users[m.ToUsername] == nil {
		return nil, common.ErrMissingReference
	}
	cp := *m
	cp.ID = int64(len(s.db.messages) + 1)
	s.db.messages = append(s.db.messages, &cp)
	m.ID = cp.ID
	return m, nil
}

func (s memMessages) Get(_ context.Context, id int64) (*models.MessageDetail, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if id < 1 || id > int64(len(s.db.messages)) {
		return nil, common.ErrNotFound
	}
	m := s.db.messages[id-1]
	return &models.MessageDetail{
		ID:       m.ID,
		Body:     m.Body,
		SentAt:   m.SentAt,
		ReadAt:   m.ReadAt,
		FromUser: s.db.users[m.FromUsername].Summary(),
		ToUser:   s.db.users[m.ToUsername].Summary(),
	}, nil
}

func (s memMessages) MarkRead(_ context.Context, id int64, at time.Time) (*models.ReadReceipt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if id < 1 || id > int64(len(s.db.messages)) {
		return nil, common.ErrNotFound
	}
	s.db.messages[id-1].ReadAt = &at
	return &models.ReadReceipt{ID: id, ReadAt: at}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestServer(t *testing.T, db fakePinger) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := &memDB{users: map[string]*models.User{}}
	users := services.NewUserService(memUsers{store}, bcrypt.MinCost)
	messages := services.NewMessageService(memMessages{store})

	return NewServer(":0", db, users, messages, Options{
		JWTSecret:   testSecret,
		CORSOrigins: []string{"*"},
	}, log).Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/register", map[string]string{
		"username":   username,
		"password":   "password",
		"first_name": "Test",
		"last_name":  username,
		"phone":      "+14155550000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[struct {
		Token string `json:"token"`
	}](t, rec).Token
}

func TestMessageFlow(t *testing.T) {
	h := newTestServer(t, fakePinger{})
	tok1 := register(t, h, "test1")
	tok2 := register(t, h, "test2")
	tok3 := register(t, h, "test3")

	// test1 sends a message to test2
	rec := do(t, h, http.MethodPost, "/messages/", map[string]string{
		"_token":      tok1,
		"to_username": "test2",
		"body":        "Hello",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[struct {
		Message models.Message `json:"message"`
	}](t, rec).Message
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "test1", created.FromUsername)
	assert.Equal(t, "test2", created.ToUsername)
	assert.NotContains(t, rec.Body.String(), "read_at")

	// both participants can see it, nobody else can
	for _, tok := range []string{tok1, tok2} {
		rec = do(t, h, http.MethodGet, "/messages/1?_token="+tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		detail := decode[struct {
			Message models.MessageDetail `json:"message"`
		}](t, rec).Message
		assert.Equal(t, "Hello", detail.Body)
		assert.Equal(t, "test1", detail.FromUser.Username)
		assert.Equal(t, "test2", detail.ToUser.Username)
		assert.Nil(t, detail.ReadAt)
	}
	rec = do(t, h, http.MethodGet, "/messages/1?_token="+tok3, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// only the recipient can mark it read
	rec = do(t, h, http.MethodPost, "/messages/1/read", map[string]string{"_token": tok1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/messages/1/read", map[string]string{"_token": tok2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[struct {
		Message struct {
			Results models.ReadReceipt `json:"results"`
		} `json:"message"`
	}](t, rec).Message.Results
	assert.Equal(t, int64(1), receipt.ID)
	assert.False(t, receipt.ReadAt.Before(created.SentAt))

	// the read shows up in both views
	rec = do(t, h, http.MethodGet, "/users/test2/to?_token="+tok2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[struct {
		Messages []models.ReceivedMessage `json:"messages"`
	}](t, rec).Messages
	require.Len(t, inbox, 1)
	assert.Equal(t, "test1", inbox[0].FromUser.Username)
	assert.NotNil(t, inbox[0].ReadAt)

	rec = do(t, h, http.MethodGet, "/users/test1/from?_token="+tok1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	outbox := decode[struct {
		Messages []models.SentMessage `json:"messages"`
	}](t, rec).Messages
	require.Len(t, outbox, 1)
	assert.Equal(t, "test2", outbox[0].ToUser.Username)

	rec = do(t, h, http.MethodGet, "/users/test3/to?_token="+tok3, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestMessages_Errors(t *testing.T) {
	h := newTestServer(t, fakePinger{})
	tok := register(t, h, "test1")

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{"no token", http.MethodGet, "/messages/1", nil, http.StatusUnauthorized, "Unauthorized"},
		{"bad token", http.MethodGet, "/messages/1?_token=nope", nil, http.StatusUnauthorized, "Unauthorized"},
		{"unknown id", http.MethodGet, "/messages/42?_token=" + tok, nil, http.StatusNotFound, "No such message."},
		{"non numeric id", http.MethodGet, "/messages/abc?_token=" + tok, nil, http.StatusNotFound, "No such message."},
		{"read unknown id", http.MethodPost, "/messages/42/read", map[string]string{"_token": tok}, http.StatusNotFound, "No such message."},
		{
			"missing body", http.MethodPost, "/messages",
			map[string]string{"_token": tok, "to_username": "test1"},
			http.StatusBadRequest, "Message body required.",
		},
		{
			"unknown recipient", http.MethodPost, "/messages",
			map[string]string{"_token": tok, "to_username": "ghost", "body": "hi"},
			http.StatusConflict, "Unable to create message.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
			body := decode[utils.ErrorResponse](t, rec)
			assert.Equal(t, tc.wantStatus, body.Error.Status)
			assert.Equal(t, tc.wantMsg, body.Error.Message)
		})
	}
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, fakePinger{})
	register(t, h, "test1")

	t.Run("duplicate username", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/register", map[string]string{
			"username": "test1", "password": "x", "first_name": "A", "last_name": "B", "phone": "1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"error":{"message":"Username taken. Please pick another.","status":409}}`, rec.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/register", map[string]string{"username": "test9", "password": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "test1", "password": "password"})
		require.Equal(t, http.StatusOK, rec.Code)
		tok := decode[struct {
			Token string `json:"token"`
		}](t, rec).Token

		username, err := utils.ParseJWT(tok, testSecret)
		require.NoError(t, err)
		assert.Equal(t, "test1", username)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "test1", "password": "nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":{"message":"Invalid username/password.","status":400}}`, rec.Body.String())
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "ghost", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUsers(t *testing.T) {
	h := newTestServer(t, fakePinger{})
	tok1 := register(t, h, "test1")
	register(t, h, "test2")

	rec := do(t, h, http.MethodGet, "/users?_token="+tok1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Users []map[string]any `json:"users"`
	}](t, rec).Users
	require.Len(t, list, 2)
	for _, u := range list {
		assert.Len(t, u, 4)
		assert.NotContains(t, u, "password")
	}

	rec = do(t, h, http.MethodGet, "/users/test1?_token="+tok1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		User map[string]any `json:"user"`
	}](t, rec).User
	assert.Equal(t, "test1", detail["username"])
	assert.Contains(t, detail, "join_at")
	assert.Contains(t, detail, "last_login_at")
	assert.NotContains(t, detail, "password")

	// another user's detail and views are off limits
	for _, path := range []string{"/users/test2", "/users/test2/to", "/users/test2/from"} {
		rec = do(t, h, http.MethodGet, path+"?_token="+tok1, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec = do(t, h, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, fakePinger{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, newTestServer(t, fakePinger{err: errors.New("connection refused")}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestRouter_Misc(t *testing.T) {
	h := newTestServer(t, fakePinger{})

	rec := do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"message":"Not Found","status":404}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodOptions, "/messages", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_Shutdown(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := NewServer("127.0.0.1:0", fakePinger{}, nil, nil, Options{}, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCreateMessage_LargeBody(t *testing.T) {
	h := newTestServer(t, fakePinger{})
	tok := register(t, h, "test1")
	register(t, h, "test2")
	body := strings.Repeat("x", 1<<20+10)

	rec := do(t, h, http.MethodPost, "/messages/", map[string]string{
		"_token": tok, "to_username": "test2", "body": body,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/messages/?_token="+tok, map[string]string{
		"to_username": "test2", "body": body,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[struct {
		Message models.Message `json:"message"`
	}](t, rec).Message
	assert.Len(t, created.Body, len(body))
}
