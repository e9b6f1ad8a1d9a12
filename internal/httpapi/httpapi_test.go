package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/files"
	"github.com/masaic-ai/open-responses-go/internal/orchestrator"
	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
	"github.com/masaic-ai/open-responses-go/internal/reconciler"
	"github.com/masaic-ai/open-responses-go/internal/store"
	"github.com/masaic-ai/open-responses-go/internal/streaming"
	"github.com/masaic-ai/open-responses-go/internal/tools"
	"github.com/masaic-ai/open-responses-go/internal/upstream"
)

func newTestServer(t *testing.T, upstreamURL string) *httptest.Server {
	t.Helper()
	router := providerrouter.New(upstreamURL, nil)
	sharedStore := store.New(store.NewMemoryEngine())
	httpClient := &http.Client{}

	nonStreaming := orchestrator.New(orchestrator.Config{
		Router: router, Client: upstream.New(httpClient),
		Reconciler: reconciler.New(tools.NewRegistry(), 10), Store: sharedStore,
		MaxToolCalls: 10, Timeout: 5 * time.Second,
	})
	streamingOrch := streaming.New(streaming.Config{
		Router: router, Client: upstream.New(httpClient),
		Reconciler: reconciler.New(tools.NewRegistry(), 10), Store: sharedStore,
		MaxToolCalls: 10, Timeout: 5 * time.Second,
	})
	fileStore, err := files.New(t.TempDir())
	require.NoError(t, err)

	r := NewRouter(Config{
		Router: router, NonStreaming: nonStreaming, Streaming: streamingOrch,
		Store: sharedStore, Files: fileStore, RequestTimeout: 5 * time.Second,
	})
	return httptest.NewServer(r)
}

func TestRouter_CreateResponseNonStreaming(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		finish := domain.FinishStop
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.ChatResponse{
			ID:      "chatcmpl_1",
			Choices: []domain.ChatChoice{{Message: domain.ChatMessage{Role: "assistant", Content: domain.TextOnly("hi there")}, FinishReason: &finish}},
		})
	}))
	defer upstreamSrv.Close()

	srv := newTestServer(t, upstreamSrv.URL)
	defer srv.Close()

	body := bytes.NewBufferString(`{"model":"gpt-4o-mini","input":"hello","store":true}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/responses", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-key")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded domain.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, domain.StatusCompleted, decoded.Status)

	getResp, err := srv.Client().Get(srv.URL + "/v1/responses/" + decoded.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestRouter_GetResponseNotFound(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid")
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/responses/resp_nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var apiErr map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "not_found", apiErr["type"])
}

func TestRouter_CreateResponseMissingAuthorizationIsInvalidConfiguration(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid")
	defer srv.Close()

	body := bytes.NewBufferString(`{"model":"gpt-4o-mini","input":"hello"}`)
	resp, err := srv.Client().Post(srv.URL+"/v1/responses", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_FileUploadGetContentDelete(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid")
	defer srv.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello file"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("purpose", "assistants"))
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/files", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var file domain.File
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file))
	assert.Equal(t, "notes.txt", file.Filename)

	contentResp, err := srv.Client().Get(srv.URL + "/v1/files/" + file.ID + "/content")
	require.NoError(t, err)
	defer contentResp.Body.Close()
	assert.Equal(t, http.StatusOK, contentResp.StatusCode)

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/files/"+file.ID, nil)
	require.NoError(t, err)
	delResp, err := srv.Client().Do(delReq)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)
}

func TestRouter_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid")
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
