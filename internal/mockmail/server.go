// Package mockmail implements a minimal Resend-compatible mail API for
// local harness use and transport tests.
package mockmail

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Message records an email accepted by the mock service.
type Message struct {
	ID      string
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Server implements the subset of the Resend API that the mail transport
// uses: POST /emails with a bearer token.
type Server struct {
	mu    sync.Mutex
	calls []Call
	sent  []Message

	expectedAuthorization string

	nextID int

	// rejections maps a recipient address to the error message returned
	// for any send addressed to it.
	rejections map[string]string
}

// New constructs a new mock server.
func New() *Server {
	return &Server{
		nextID:     1,
		rejections: make(map[string]string),
	}
}

// RequireBearerToken enforces that requests include an Authorization header
// matching the token. If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// RejectRecipient makes every send addressed to the recipient fail with a
// validation error carrying the given message.
func (s *Server) RejectRecipient(recipient, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections[recipient] = message
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/emails", s.handleEmails)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Sent returns a snapshot of messages accepted by the server.
func (s *Server) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := s.expectedAuthorization
	s.mu.Unlock()

	if expected == "" {
		return true
	}
	if r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "validation_error", "API key is invalid")
		return false
	}
	return true
}

type sendReq struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type sendResp struct {
	ID string `json:"id"`
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if req.From == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "the from field is required")
		return
	}
	if len(req.To) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "the to field is required")
		return
	}

	s.mu.Lock()
	for _, to := range req.To {
		if msg, ok := s.rejections[to]; ok {
			s.mu.Unlock()
			writeError(w, http.StatusUnprocessableEntity, "validation_error", msg)
			return
		}
	}
	id := fmt.Sprintf("msg-%06d", s.nextID)
	s.nextID++
	s.sent = append(s.sent, Message{
		ID:      id,
		From:    req.From,
		To:      append([]string(nil), req.To...),
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
	})
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sendResp{ID: id})
}

type errorResp struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResp{StatusCode: code, Name: name, Message: message})
}
