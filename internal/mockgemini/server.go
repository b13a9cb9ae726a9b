package mockgemini

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultText is returned when no response was scripted for a key.
const DefaultText = `{"description":"Acme builds anvils.","sector":"Manufacturing","estimatedSize":"50-200","painPoints":["supply chain visibility","manual invoicing"]}`

// Response is one scripted reply. A zero Status means 200.
type Response struct {
	Status int
	// Text is the candidate text on success, or the error message otherwise.
	Text string
	// Delay holds the reply back; it is cut short if the client goes away.
	Delay time.Duration
}

// Call records a generateContent request made to the mock service.
type Call struct {
	Model  string
	APIKey string
	Prompt string
}

// Server implements the slice of the Gemini REST API used by the enricher:
// POST /{version}/models/{model}:generateContent.
type Server struct {
	mu       sync.Mutex
	calls    []Call
	scripts  map[string][]Response
	fallback Response
}

// New constructs a mock that answers every key with DefaultText.
func New() *Server {
	return &Server{
		scripts:  make(map[string][]Response),
		fallback: Response{Text: DefaultText},
	}
}

// Script queues replies for apiKey. Each request consumes one reply; the last one
// is repeated once the queue is down to it.
func (s *Server) Script(apiKey string, replies ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[apiKey] = append(s.scripts[apiKey], replies...)
}

// SetDefault replaces the reply used for keys without a script.
func (s *Server) SetDefault(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
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

// CallsFor returns how many requests used apiKey.
func (s *Server) CallsFor(apiKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.APIKey == apiKey {
			n++
		}
	}
	return n
}

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	// /v1beta/models/{model}:generateContent
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] != "models" || !strings.HasSuffix(parts[2], ":generateContent") {
		writeError(w, http.StatusNotFound, "unknown method "+r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	model := strings.TrimSuffix(parts[2], ":generateContent")

	apiKey := strings.TrimSpace(r.Header.Get("x-goog-api-key"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(r.URL.Query().Get("key"))
	}
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "API key not valid. Please pass a valid API key.")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}
	var prompt strings.Builder
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			prompt.WriteString(p.Text)
		}
	}

	reply := s.record(Call{Model: model, APIKey: apiKey, Prompt: prompt.String()})

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		writeError(w, status, reply.Text)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": reply.Text}},
				},
				"finishReason": "STOP",
				"index":        0,
			},
		},
		"modelVersion": model,
	})
}

func (s *Server) record(c Call) Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)

	queue := s.scripts[c.APIKey]
	if len(queue) == 0 {
		return s.fallback
	}
	reply := queue[0]
	if len(queue) > 1 {
		s.scripts[c.APIKey] = queue[1:]
	}
	return reply
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"status":  statusName(code),
		},
	})
}

func statusName(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	default:
		return "INTERNAL"
	}
}
