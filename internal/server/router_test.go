package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
	"github.com/gin-gonic/gin"
)

type stubSessions struct {
	claims     auth.SessionClaims
	err        error
	issueToken string
}

func (s stubSessions) Issue(auth.IdentityClaims) (string, error) {
	if s.issueToken == "" {
		return "", errors.New("not implemented")
	}
	return s.issueToken, nil
}

func (s stubSessions) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

func (s stubSessions) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{Name: "hallway_session", Value: token}
}

func (s stubSessions) ClearCookie() *http.Cookie {
	return &http.Cookie{Name: "hallway_session", MaxAge: -1}
}

type memoryUserStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{entries: make(map[string]string)}
}

func (s *memoryUserStore) Lookup(_ context.Context, email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.entries[email]
	return username, ok, nil
}

func (s *memoryUserStore) Upsert(_ context.Context, email, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = username
	return nil
}

type memoryMessageStore struct {
	mu       sync.Mutex
	limit    int
	messages []chat.Message
}

func newMemoryMessageStore(limit int) *memoryMessageStore {
	return &memoryMessageStore{limit: limit}
}

func (s *memoryMessageStore) Append(_ context.Context, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	if len(s.messages) > s.limit {
		s.messages = s.messages[len(s.messages)-s.limit:]
	}
	return nil
}

func (s *memoryMessageStore) List(_ context.Context) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.messages...), nil
}

type handlerFixture struct {
	handler   http.Handler
	userStore *memoryUserStore
	msgStore  *memoryMessageStore
	chat      *chat.Service
}

func newHandlerFixture(t *testing.T, sessions SessionManager) handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	userStore := newMemoryUserStore()
	usersService, err := users.NewService(users.ServiceConfig{Store: userStore})
	if err != nil {
		t.Fatalf("failed to create users service: %v", err)
	}

	chatHub := hub.New(hub.Config{})
	msgStore := newMemoryMessageStore(chat.DefaultHistoryLimit)
	chatService, err := chat.NewService(chat.ServiceConfig{
		Store:       msgStore,
		Broadcaster: chatHub,
	})
	if err != nil {
		t.Fatalf("failed to create chat service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Sessions: sessions,
		Users:    usersService,
		Chat:     chatService,
		Hub:      chatHub,
	})
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}

	return handlerFixture{handler: handler, userStore: userStore, msgStore: msgStore, chat: chatService}
}

func authenticatedSessions() stubSessions {
	return stubSessions{claims: auth.SessionClaims{Email: "alice@example.com", Name: "Alice Example"}}
}

func unauthenticatedSessions() stubSessions {
	return stubSessions{err: auth.ErrMissingSessionToken}
}

func TestCurrentUserUnauthenticated(t *testing.T) {
	fixture := newHandlerFixture(t, unauthenticatedSessions())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/user", http.NoBody)
	fixture.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", body)
	}
	if _, present := body["email"]; present {
		t.Fatalf("expected no email for anonymous caller, got %v", body)
	}
}

func TestCurrentUserIncludesStoredUsername(t *testing.T) {
	fixture := newHandlerFixture(t, authenticatedSessions())
	if err := fixture.userStore.Upsert(context.Background(), "alice@example.com", "alice"); err != nil {
		t.Fatalf("failed to seed username: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/user", http.NoBody)
	fixture.handler.ServeHTTP(recorder, request)

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["authenticated"] != true {
		t.Fatalf("expected authenticated=true, got %v", body)
	}
	if body["email"] != "alice@example.com" || body["username"] != "alice" {
		t.Fatalf("unexpected identity payload: %v", body)
	}
}

func TestCurrentUserOmitsUnsetUsername(t *testing.T) {
	fixture := newHandlerFixture(t, authenticatedSessions())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/user", http.NoBody)
	fixture.handler.ServeHTTP(recorder, request)

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, present := body["username"]; present {
		t.Fatalf("expected username to be omitted when unset, got %v", body)
	}
}

func TestSetUsernameRequiresSession(t *testing.T) {
	fixture := newHandlerFixture(t, unauthenticatedSessions())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/set-username", strings.NewReader(`{"username":"alice"}`))
	request.Header.Set("Content-Type", "application/json")
	fixture.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["ok"] != false || body["error"] != "unauthenticated" {
		t.Fatalf("unexpected error payload: %v", body)
	}
}

func TestSetUsernameRejectsShortValue(t *testing.T) {
	fixture := newHandlerFixture(t, authenticatedSessions())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/set-username", strings.NewReader(`{"username":"a"}`))
	request.Header.Set("Content-Type", "application/json")
	fixture.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["ok"] != false || body["error"] != "invalid_username" {
		t.Fatalf("unexpected error payload: %v", body)
	}
}

func TestSetUsernameStoresTrimmedValue(t *testing.T) {
	fixture := newHandlerFixture(t, authenticatedSessions())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/set-username", strings.NewReader(`{"username":"  alice  "}`))
	request.Header.Set("Content-Type", "application/json")
	fixture.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["ok"] != true || body["username"] != "alice" {
		t.Fatalf("unexpected payload: %v", body)
	}

	stored, _, err := fixture.userStore.Lookup(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored != "alice" {
		t.Fatalf("expected trimmed username in store, got %q", stored)
	}
}

func TestMessagesEndpointReturnsFullLog(t *testing.T) {
	fixture := newHandlerFixture(t, unauthenticatedSessions())

	sender := users.Identity{Email: "a@x.com", Username: "alice"}
	for _, text := range []string{"one", "two"} {
		if _, err := fixture.chat.Submit(context.Background(), sender, text); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/messages", http.NoBody)
	fixture.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	var messages []chat.Message
	if err := json.Unmarshal(recorder.Body.Bytes(), &messages); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(messages) != 2 || messages[0].Text != "one" || messages[1].Text != "two" {
		t.Fatalf("unexpected log: %+v", messages)
	}
}

func TestMessagesEndpointReturnsEmptyArrayForEmptyLog(t *testing.T) {
	fixture := newHandlerFixture(t, unauthenticatedSessions())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/messages", http.NoBody)
	fixture.handler.ServeHTTP(recorder, request)

	if strings.TrimSpace(recorder.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", recorder.Body.String())
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatal("expected dependency validation error")
	}
}
