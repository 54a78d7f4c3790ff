// Package mockgemini serves a minimal fake of the Gemini generateContent endpoint.
//
// It is used by integration tests and by the mock-gemini command for offline demos.
package mockgemini

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Model  string
	APIKey string
	Body   []byte
}

// Prompt returns the concatenated text parts of the recorded request.
func (c Call) Prompt() string {
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(c.Body, &req); err != nil {
		return ""
	}
	var b strings.Builder
	for _, content := range req.Contents {
		for _, p := range content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Reply is one scripted response.
type Reply struct {
	// Status is the HTTP status; 0 means 200.
	Status int
	// ErrorStatus is the Google RPC status name used in error bodies (e.g. PERMISSION_DENIED).
	ErrorStatus string
	// Message is the error message for non-2xx replies.
	Message string

	// Text is the model's text part. It is sent as-is, valid JSON or not.
	Text    string
	Sources []lead.Source

	// Delay holds the response back.
	Delay time.Duration
}

// Server implements the generateContent surface with scripted replies.
type Server struct {
	mu       sync.Mutex
	calls    []Call
	queue    []Reply
	fallback Reply

	expectedKey string
}

// New constructs a server whose default reply is an empty lead list.
func New() *Server {
	return &Server{fallback: Reply{Text: `{"leads":[]}`}}
}

// RequireAPIKey rejects requests whose x-goog-api-key header differs from key.
// An empty key disables the check.
func (s *Server) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedKey = strings.TrimSpace(key)
}

// Enqueue adds replies served in FIFO order before falling back to the default.
func (s *Server) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, replies...)
}

// SetDefault replaces the reply used once the queue is empty.
func (s *Server) SetDefault(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	// /{version}/models/{model}:generateContent
	path := r.URL.Path
	idx := strings.Index(path, "/models/")
	if idx < 0 || !strings.HasSuffix(path, ":generateContent") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	model := strings.TrimSuffix(path[idx+len("/models/"):], ":generateContent")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	key := r.Header.Get("x-goog-api-key")
	if key == "" {
		key = r.URL.Query().Get("key")
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: path, Model: model, APIKey: key, Body: body})
	expected := s.expectedKey
	reply := s.fallback
	if len(s.queue) > 0 {
		reply = s.queue[0]
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	if expected != "" && key != expected {
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "API key not valid. Please pass a valid API key.")
		return
	}

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	if reply.Status != 0 && reply.Status/100 != 2 {
		writeError(w, reply.Status, reply.ErrorStatus, reply.Message)
		return
	}

	writeJSON(w, http.StatusOK, successBody(reply))
}

func successBody(reply Reply) map[string]any {
	candidate := map[string]any{
		"content": map[string]any{
			"role":  "model",
			"parts": []map[string]any{{"text": reply.Text}},
		},
		"finishReason": "STOP",
		"index":        0,
	}
	if len(reply.Sources) > 0 {
		chunks := make([]map[string]any, 0, len(reply.Sources))
		for _, src := range reply.Sources {
			key := "web"
			if src.Kind == lead.SourceMaps {
				key = "maps"
			}
			chunks = append(chunks, map[string]any{
				key: map[string]any{"title": src.Title, "uri": src.URI},
			})
		}
		candidate["groundingMetadata"] = map[string]any{"groundingChunks": chunks}
	}
	return map[string]any{
		"candidates": []map[string]any{candidate},
		"usageMetadata": map[string]any{
			"promptTokenCount":     120,
			"candidatesTokenCount": 480,
			"totalTokenCount":      600,
		},
	}
}

func writeError(w http.ResponseWriter, code int, status, message string) {
	if status == "" {
		status = http.StatusText(code)
	}
	if message == "" {
		message = status
	}
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
