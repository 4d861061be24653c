package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type backendUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	password string
}

type backendMessage struct {
	FromID    int64  `json:"from_id"`
	ToID      int64  `json:"-"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// chatBackend is an in-memory chat REST backend.
type chatBackend struct {
	mu       sync.Mutex
	nextID   int64
	users    []*backendUser
	messages []backendMessage
}

func newChatBackend(t *testing.T) (*chatBackend, *httptest.Server) {
	t.Helper()
	b := &chatBackend{nextID: 1}
	b.add("root", "toor", true)
	b.add("alice", "secret", false)
	b.add("bob", "hunter2", false)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", b.login)
	mux.HandleFunc("POST /register", b.register)
	mux.HandleFunc("GET /me", b.auth(b.me))
	mux.HandleFunc("GET /users", b.auth(b.listUsers))
	mux.HandleFunc("DELETE /users/{id}", b.auth(b.removeUser))
	mux.HandleFunc("GET /messages/{peer}", b.auth(b.listMessages))
	mux.HandleFunc("POST /messages/{peer}", b.auth(b.sendMessage))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return b, server
}

func (b *chatBackend) add(username, password string, admin bool) *backendUser {
	u := &backendUser{ID: b.nextID, Username: username, IsAdmin: admin, password: password}
	b.nextID++
	b.users = append(b.users, u)
	return u
}

func (b *chatBackend) addUser(username, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(username, password, false)
}

func (b *chatBackend) find(fn func(*backendUser) bool) *backendUser {
	for _, u := range b.users {
		if fn(u) {
			return u
		}
	}
	return nil
}

func tokenFor(u *backendUser) string {
	return "token-" + u.Username
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (b *chatBackend) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.find(func(u *backendUser) bool { return u.Username == body.Username && u.password == body.Password })
	if u == nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tokenFor(u)})
}

func (b *chatBackend) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.find(func(u *backendUser) bool { return u.Username == body.Username }) != nil {
		http.Error(w, "user exists", http.StatusConflict)
		return
	}
	b.add(body.Username, body.Password, false)
	w.WriteHeader(http.StatusCreated)
}

func (b *chatBackend) auth(next func(http.ResponseWriter, *http.Request, *backendUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		u := b.find(func(u *backendUser) bool { return tokenFor(u) == token })
		b.mu.Unlock()
		if u == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, u)
	}
}

func (b *chatBackend) me(w http.ResponseWriter, _ *http.Request, u *backendUser) {
	writeJSON(w, http.StatusOK, u)
}

func (b *chatBackend) listUsers(w http.ResponseWriter, _ *http.Request, _ *backendUser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.users)
}

func (b *chatBackend) removeUser(w http.ResponseWriter, r *http.Request, u *backendUser) {
	if !u.IsAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.users {
		if existing.ID == id {
			b.users = append(b.users[:i], b.users[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (b *chatBackend) listMessages(w http.ResponseWriter, r *http.Request, u *backendUser) {
	peer, _ := strconv.ParseInt(r.PathValue("peer"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	conversation := []backendMessage{}
	for _, m := range b.messages {
		if (m.FromID == u.ID && m.ToID == peer) || (m.FromID == peer && m.ToID == u.ID) {
			conversation = append(conversation, m)
		}
	}
	writeJSON(w, http.StatusOK, conversation)
}

func (b *chatBackend) sendMessage(w http.ResponseWriter, r *http.Request, u *backendUser) {
	peer, _ := strconv.ParseInt(r.PathValue("peer"), 10, 64)
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, backendMessage{
		FromID:    u.ID,
		ToID:      peer,
		Content:   body.Content,
		Timestamp: time.Now().UTC().Format("2006-01-02 15:04:05"),
	})
	w.WriteHeader(http.StatusCreated)
}

// deliver stores a message as if from had sent it to to.
func (b *chatBackend) deliver(from, to int64, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, backendMessage{FromID: from, ToID: to, Content: content})
}

func (b *chatBackend) messageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
