package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/loyalbridge/admin/internal/openapi"
)

// DocsHandler serves the OpenAPI document describing this API.
type DocsHandler struct {
	baseURL string

	once sync.Once
	doc  []byte
	err  error
}

// NewDocsHandler creates a DocsHandler advertising baseURL as the server.
func NewDocsHandler(baseURL string) *DocsHandler {
	return &DocsHandler{baseURL: baseURL}
}

// ServeSpec returns the OpenAPI 3.1 document. It is generated once.
// GET /api-docs
func (h *DocsHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc, h.err = json.Marshal(openapi.GenerateAuthSpec(h.baseURL))
	})
	if h.err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render API document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(h.doc)
}
