package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xhad/taleweaver/pkg/story"
)

const (
	msgInvalidGenerate = "Invalid request, 'new_input' field is required"
	msgNoStoryText     = "No story text provided"
	msgServerError     = "Server error"

	maxBodyBytes = 1 << 20
)

const greetingHTML = `<!DOCTYPE html>
<html>
<head><title>Taleweaver</title></head>
<body><h1>Taleweaver</h1><p>The story server is running.</p></body>
</html>
`

// Storyteller is the story flow the handlers drive.
type Storyteller interface {
	Continue(ctx context.Context, newInput, storySoFar string) (string, error)
	Format(ctx context.Context, storyText string) (*story.Formatted, error)
}

type Config struct {
	// CORSOrigins lists the origins allowed to call the API. Empty or "*"
	// allows any origin.
	CORSOrigins []string
}

type Server struct {
	config      Config
	storyteller Storyteller
	upgrader    websocket.Upgrader
}

type generateRequest struct {
	NewInput string `json:"new_input"`
	Context  string `json:"context"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type formatRequest struct {
	StoryText string `json:"story_text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(config Config, storyteller Storyteller) *Server {
	s := &Server{
		config:      config,
		storyteller: storyteller,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	return s
}

// Handler returns the routed handler with CORS and panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/format-story", s.handleFormatStory)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.corsMiddleware(recoverMiddleware(mux))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, greetingHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}

	var req generateRequest
	if err := decodeBody(r, &req); err != nil || req.NewInput == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidGenerate})
		return
	}

	continuation, err := s.storyteller.Continue(r.Context(), req.NewInput, req.Context)
	if err != nil {
		log.Printf("[server] generate failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgServerError})
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Response: continuation})
}

func (s *Server) handleFormatStory(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}

	var req formatRequest
	if err := decodeBody(r, &req); err != nil || req.StoryText == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoStoryText})
		return
	}

	formatted, err := s.storyteller.Format(r.Context(), req.StoryText)
	if err != nil {
		log.Printf("[server] format failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgServerError})
		return
	}

	writeJSON(w, http.StatusOK, formatted)
}

func allowPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", "POST, OPTIONS")
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	return false
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] error encoding response: %v", err)
	}
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.config.CORSOrigins) == 0 {
		return true
	}
	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("[server] panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgServerError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[server] error sending message: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[server] error reading message: %v", err)
			}
			cancel()
			return
		}

		var msg wsRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.send(Message{Type: "error", Content: "invalid message"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, ws, msg)
		}()
	}
}

type wsRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    struct {
		Context string `json:"context"`
	} `json:"data"`
}

func (s *Server) handleMessage(ctx context.Context, ws *wsConn, msg wsRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[server] panic handling %s message: %v", msg.Type, rec)
			ws.send(Message{Type: "error", Content: msgServerError})
		}
	}()

	switch msg.Type {
	case "generate":
		if msg.Content == "" {
			ws.send(Message{Type: "error", Content: msgInvalidGenerate})
			return
		}
		continuation, err := s.storyteller.Continue(ctx, msg.Content, msg.Data.Context)
		if err != nil {
			log.Printf("[server] generate failed: %v", err)
			ws.send(Message{Type: "error", Content: msgServerError})
			return
		}
		ws.send(Message{Type: "response", Content: continuation})

	case "format":
		if msg.Content == "" {
			ws.send(Message{Type: "error", Content: msgNoStoryText})
			return
		}
		formatted, err := s.storyteller.Format(ctx, msg.Content)
		if err != nil {
			log.Printf("[server] format failed: %v", err)
			ws.send(Message{Type: "error", Content: msgServerError})
			return
		}
		ws.send(Message{Type: "formatted", Content: formatted.FormattedStory, Data: formatted})

	default:
		ws.send(Message{Type: "error", Content: "unknown message type: " + msg.Type})
	}
}
