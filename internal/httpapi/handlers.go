package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/streaming"
)

type handlers struct {
	cfg Config
}

// createResponse implements POST /v1/responses: dispatches to the streaming
// or non-streaming orchestrator depending on the request body's stream flag,
// per spec §6's "If stream=true, response is text/event-stream; else
// application/json".
func (h *handlers) createResponse(w http.ResponseWriter, r *http.Request) {
	var req domain.ResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "request body is not valid JSON", err))
		return
	}

	resolution, err := h.cfg.Router.Resolve(r, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.cfg.Router.Limiter(resolution.ProviderTag).Allow() {
		writeError(w, apierror.New(apierror.KindRateLimitExceeded, "rate limit exceeded for provider "+resolution.ProviderTag))
		return
	}

	if req.Stream {
		sw, err := streaming.NewWriter(w)
		if err != nil {
			writeError(w, apierror.Wrap(apierror.KindInternalError, "response writer does not support streaming", err))
			return
		}
		if err := h.cfg.Streaming.HandleResponse(r, &req, sw); err != nil {
			// Events already flushed; nothing more can be written to the client.
			return
		}
		return
	}

	resp, err := h.cfg.NonStreaming.HandleResponse(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stored, err := h.cfg.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored.Response)
}

func (h *handlers) deleteResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.cfg.Store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "response.deleted", "deleted": true})
}

// listInputItems implements GET /v1/responses/{id}/input_items?limit=&order=
// per spec §6, defaulting order to asc and limit to 1000.
func (h *handlers) listInputItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, err := h.cfg.Store.GetInputItems(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	order := r.URL.Query().Get("order")
	if order == "desc" {
		reversed := make([]domain.InputItem, len(items))
		for i, item := range items {
			reversed[len(items)-1-i] = item
		}
		items = reversed
	}

	limit := 1000
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}
	if len(items) > limit {
		items = items[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": items})
}

// createFile implements POST /v1/files: multipart upload per spec §6.
func (h *handlers) createFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "invalid multipart upload", err))
		return
	}
	purpose := domain.FilePurpose(r.FormValue("purpose"))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "missing file part", err))
		return
	}
	defer file.Close()

	stored, err := h.cfg.Files.Create(r.Context(), header.Filename, purpose, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": h.cfg.Files.List()})
}

func (h *handlers) getFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	file, err := h.cfg.Files.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *handlers) getFileContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := h.cfg.Files.Content(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer content.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, content)
}

func (h *handlers) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.cfg.Files.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "file.deleted", "deleted": true})
}

// listModels passes a provider's model listing straight through, per spec
// §6's "Passthrough of upstream model list".
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	resolution, err := h.cfg.Router.Resolve(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, resolution.BaseURL+"/models", nil)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInternalError, "failed to build upstream models request", err))
		return
	}
	upstreamReq.Header.Set("Authorization", "Bearer "+resolution.AuthToken)

	resp, err := http.DefaultClient.Do(upstreamReq)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindGenerationError, "upstream models request failed", err))
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as the non-stream error body from spec §6/§7:
// {"type","message","param","code"}.
func writeError(w http.ResponseWriter, err error) {
	apiErr := apierror.As(err)
	writeJSON(w, apiErr.Kind.HTTPStatus(), apiErr)
}
