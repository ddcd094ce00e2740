// Package petstoretest provides an in-memory pet store API for tests. It reproduces the
// status codes and envelopes of the public pet store closely enough for the built-in
// suites to pass against it.
package petstoretest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// normalizedShipDate is how the pet store echoes order dates.
const normalizedShipDate = "2006-01-02T15:04:05.000-0700"

// Server is an httptest server backed by in-memory pets, orders and users.
type Server struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu            sync.Mutex
	pets          map[string]map[string]any
	orders        map[string]map[string]any
	users         map[string]map[string]any
	requests      []RecordedRequest
	responseDelay time.Duration
	failNext      bool
	failWithCode  int
	failMessage   string
}

// RecordedRequest stores information about a received request.
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// NewServer starts a new pet store server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		pets:   make(map[string]map[string]any),
		orders: make(map[string]map[string]any),
		users:  make(map[string]map[string]any),
	}
	s.routes()

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})

		if s.failNext {
			s.failNext = false
			code, msg := s.failWithCode, s.failMessage
			s.mu.Unlock()
			writeJSON(w, code, envelope(code, "error", msg))
			return
		}

		delay := s.responseDelay
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		s.mux.ServeHTTP(w, r)
	}))
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string { return s.server.URL }

// Close shuts the server down.
func (s *Server) Close() { s.server.Close() }

// SetResponseDelay delays every subsequent response.
func (s *Server) SetResponseDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseDelay = d
}

// FailNext makes the next request fail with code and message.
func (s *Server) FailNext(code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
	s.failWithCode = code
	s.failMessage = message
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Counts returns how many pets, orders and users are currently stored.
func (s *Server) Counts() (pets, orders, users int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pets), len(s.orders), len(s.users)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /pet", s.upsertPet)
	s.mux.HandleFunc("PUT /pet", s.upsertPet)
	s.mux.HandleFunc("GET /pet/{id}", s.getPet)
	s.mux.HandleFunc("DELETE /pet/{id}", s.deletePet)
	s.mux.HandleFunc("POST /pet/{id}/uploadImage", s.uploadImage)

	s.mux.HandleFunc("GET /store/inventory", s.inventory)
	s.mux.HandleFunc("POST /store/order", s.placeOrder)
	s.mux.HandleFunc("GET /store/order/{id}", s.getOrder)
	s.mux.HandleFunc("DELETE /store/order/{id}", s.deleteOrder)

	s.mux.HandleFunc("POST /user", s.createUser)
	s.mux.HandleFunc("POST /user/createWithList", s.createUsers)
	s.mux.HandleFunc("POST /user/createWithArray", s.createUsers)
	s.mux.HandleFunc("GET /user/login", s.login)
	s.mux.HandleFunc("GET /user/logout", s.logout)
	s.mux.HandleFunc("GET /user/{username}", s.getUser)
	s.mux.HandleFunc("PUT /user/{username}", s.updateUser)
	s.mux.HandleFunc("DELETE /user/{username}", s.deleteUser)
}

func (s *Server) upsertPet(w http.ResponseWriter, r *http.Request) {
	pet, ok := decodeObject(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, envelope(400, "unknown", "bad input"))
		return
	}
	if _, ok := pet["photoUrls"]; !ok {
		pet["photoUrls"] = []any{}
	}
	if _, ok := pet["tags"]; !ok {
		pet["tags"] = []any{}
	}
	s.mu.Lock()
	s.pets[fmt.Sprint(pet["id"])] = pet
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pet)
}

func (s *Server) getPet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pet, ok := s.pets[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope(1, "error", "Pet not found"))
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

func (s *Server) deletePet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, ok := s.pets[id]
	delete(s.pets, id)
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, envelope(200, "unknown", id))
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		writeJSON(w, http.StatusUnsupportedMediaType, envelope(415, "unknown", "HTTP 415 Unsupported Media Type"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope(400, "unknown", "missing file"))
		return
	}
	defer func() { _ = file.Close() }()
	n, _ := io.Copy(io.Discard, file)

	msg := fmt.Sprintf("additionalMetadata: %s\nFile uploaded to ./%s, %d bytes", r.FormValue("additionalMetadata"), header.Filename, n)
	writeJSON(w, http.StatusOK, envelope(200, "unknown", msg))
}

func (s *Server) inventory(w http.ResponseWriter, _ *http.Request) {
	counts := map[string]int{}
	s.mu.Lock()
	for _, pet := range s.pets {
		if status, ok := pet["status"].(string); ok {
			counts[status]++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := decodeObject(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, envelope(400, "unknown", "Invalid Order"))
		return
	}
	if raw, ok := order["shipDate"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			order["shipDate"] = t.UTC().Format(normalizedShipDate)
		}
	}
	s.mu.Lock()
	s.orders[fmt.Sprint(order["id"])] = order
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	order, ok := s.orders[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope(1, "error", "Order not found"))
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, ok := s.orders[id]
	delete(s.orders, id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope(404, "unknown", "Order Not Found"))
		return
	}
	writeJSON(w, http.StatusOK, envelope(200, "unknown", id))
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	user, ok := decodeObject(r)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, envelope(500, "unknown", "something bad happened"))
		return
	}
	s.mu.Lock()
	s.users[fmt.Sprint(user["username"])] = user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope(200, "unknown", fmt.Sprint(user["id"])))
}

func (s *Server) createUsers(w http.ResponseWriter, r *http.Request) {
	var users []map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&users); err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope(500, "unknown", "something bad happened"))
		return
	}
	s.mu.Lock()
	for _, u := range users {
		s.users[fmt.Sprint(u["username"])] = u
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope(200, "unknown", "ok"))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user, ok := s.users[r.PathValue("username")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope(1, "error", "User not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := decodeObject(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, envelope(400, "unknown", "bad input"))
		return
	}
	username := r.PathValue("username")
	s.mu.Lock()
	s.users[username] = user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, envelope(200, "unknown", fmt.Sprint(user["id"])))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	s.mu.Lock()
	_, ok := s.users[username]
	delete(s.users, username)
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, envelope(200, "unknown", username))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Rate-Limit", "5000")
	w.Header().Set("X-Expires-After", time.Now().Add(time.Hour).UTC().Format(time.RFC1123))
	session := fmt.Sprintf("logged in user session:%d", time.Now().UnixNano())
	if strings.TrimSpace(r.URL.Query().Get("username")) == "" {
		session = "logged in user session:anonymous"
	}
	writeJSON(w, http.StatusOK, envelope(200, "unknown", session))
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope(200, "unknown", "ok"))
}

func decodeObject(r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func envelope(code int, typ, message string) map[string]any {
	return map[string]any{"code": code, "type": typ, "message": message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
