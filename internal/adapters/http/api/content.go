package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/nurture/internal/adapters/llm"
)

// ContentDependencies defines the interface for LLM-backed content endpoints.
type ContentDependencies interface {
	Summarize(ctx context.Context, text string) (string, error)
	Insights(ctx context.Context, text string) ([]string, error)
	GenerateTitle(ctx context.Context, text string) (string, error)
	DocumentChat(ctx context.Context, document string, conversation []llm.Message) (string, error)
}

type textRequest struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt"`
}

// input prefers text and falls back to prompt.
func (t textRequest) input() string {
	if strings.TrimSpace(t.Text) != "" {
		return t.Text
	}
	return t.Prompt
}

type chatRequest struct {
	Document     string        `json:"document"`
	Conversation []llm.Message `json:"conversation"`
}

// ContentHandler handles /ai/* requests.
type ContentHandler struct {
	deps ContentDependencies
	rw   responder
}

// NewContentHandler creates a new content handler.
func NewContentHandler(deps ContentDependencies, rw responder) *ContentHandler {
	return &ContentHandler{deps: deps, rw: rw}
}

// HandleSummarize handles POST /ai/summarize requests.
func (h *ContentHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.read(w, r, "api.summarize", &req) {
		return
	}
	summary, err := h.deps.Summarize(r.Context(), req.input())
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": summary})
}

// HandleInsights handles POST /ai/insights requests.
func (h *ContentHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.read(w, r, "api.insights", &req) {
		return
	}
	insights, err := h.deps.Insights(r.Context(), req.input())
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "insights": insights})
}

// HandleGenerateTitle handles POST /ai/generate-title requests.
func (h *ContentHandler) HandleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.read(w, r, "api.generate_title", &req) {
		return
	}
	title, err := h.deps.GenerateTitle(r.Context(), req.input())
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "title": title})
}

// HandleDocumentChat handles POST /ai/document-chat requests.
func (h *ContentHandler) HandleDocumentChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.read(w, r, "api.document_chat", &req) {
		return
	}
	reply, err := h.deps.DocumentChat(r.Context(), req.Document, req.Conversation)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "reply": reply})
}

func (h *ContentHandler) read(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if !requireMethod(w, r, http.MethodPost) {
		return false
	}
	if err := decode(w, r, op, v); err != nil {
		h.rw.error(w, r, err)
		return false
	}
	return true
}
