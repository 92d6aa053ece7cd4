package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
)

// classifyKeywords maps description keywords to the category the ML stub predicts.
var classifyKeywords = map[string]string{
	"pizza":  "Food",
	"lunch":  "Food",
	"uber":   "Transport",
	"metro":  "Transport",
	"movie":  "Entertainment",
	"clinic": "Health",
}

// MLService stubs the embedding and classification service. Embeddings are keyword vectors:
// component i is 1 when the text names Categories[i], and a constant last component keeps
// every vector non-zero.
type MLService struct {
	*httptest.Server
	failEmbed     atomic.Bool
	embedCalls    atomic.Int64
	classifyCalls atomic.Int64
}

// NewMLService starts the stub. Close it when done.
func NewMLService() *MLService {
	m := &MLService{}
	mux := http.NewServeMux()
	mux.HandleFunc("/embed", m.handleEmbed)
	mux.HandleFunc("/classify", m.handleClassify)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	m.Server = httptest.NewServer(mux)
	return m
}

// FailEmbed makes every later /embed call fail with 503.
func (m *MLService) FailEmbed(fail bool) { m.failEmbed.Store(fail) }

// EmbedCalls returns the number of /embed requests served.
func (m *MLService) EmbedCalls() int64 { return m.embedCalls.Load() }

// ClassifyCalls returns the number of /classify requests served.
func (m *MLService) ClassifyCalls() int64 { return m.classifyCalls.Load() }

// KeywordVector returns the embedding the stub produces for text.
func KeywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(Categories)+1)
	for i, c := range Categories {
		if strings.Contains(lower, strings.ToLower(c)) {
			v[i] = 1
		}
	}
	v[len(Categories)] = 0.5
	return v
}

func (m *MLService) handleEmbed(w http.ResponseWriter, r *http.Request) {
	m.embedCalls.Add(1)
	if m.failEmbed.Load() {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := make([][]float32, len(req.Texts))
	for i, t := range req.Texts {
		out[i] = KeywordVector(t)
	}
	writeJSON(w, map[string]interface{}{"embeddings": out})
}

func (m *MLService) handleClassify(w http.ResponseWriter, r *http.Request) {
	m.classifyCalls.Add(1)
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lower := strings.ToLower(req.Text)
	for kw, cat := range classifyKeywords {
		if strings.Contains(lower, kw) {
			writeJSON(w, map[string]interface{}{"category": cat, "confidence": 0.92})
			return
		}
	}
	writeJSON(w, map[string]interface{}{"category": "Other", "confidence": 0.31})
}

// ChatService stubs an OpenAI-compatible chat completion endpoint. An empty reply makes
// every call fail.
type ChatService struct {
	*httptest.Server
	reply atomic.Value
	calls atomic.Int64
}

// NewChatService starts the stub answering with reply.
func NewChatService(reply string) *ChatService {
	c := &ChatService{}
	c.reply.Store(reply)
	c.Server = httptest.NewServer(http.HandlerFunc(c.handle))
	return c
}

// SetReply changes the answer; "" makes the provider fail.
func (c *ChatService) SetReply(reply string) { c.reply.Store(reply) }

// Calls returns the number of chat requests served.
func (c *ChatService) Calls() int64 { return c.calls.Load() }

func (c *ChatService) handle(w http.ResponseWriter, r *http.Request) {
	c.calls.Add(1)
	reply := c.reply.Load().(string)
	if reply == "" {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
		return
	}
	var req struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeJSON(w, map[string]interface{}{
		"id":     "chatcmpl-e2e",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": reply},
		}},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
