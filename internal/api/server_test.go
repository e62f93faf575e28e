package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/config"
	"github.com/Aman-CERP/docqa/internal/engine"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/retrieve"
	"github.com/Aman-CERP/docqa/internal/scanner"
)

// fakeService records calls and returns canned results.
type fakeService struct {
	mu         sync.Mutex
	queries    []string
	users      []string
	answer     *retrieve.Answer
	answerErr  error
	rebuild    *engine.RebuildResult
	rebuildErr error
	sources    []scanner.FileRecord
	status     engine.Status
}

func (f *fakeService) Rebuild(_ context.Context, id auth.Identity) (*engine.RebuildResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, id.User)
	return f.rebuild, f.rebuildErr
}

func (f *fakeService) Answer(_ context.Context, id auth.Identity, query string) (*retrieve.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, id.User)
	f.queries = append(f.queries, query)
	return f.answer, f.answerErr
}

func (f *fakeService) Sources(_ context.Context, id auth.Identity) []scanner.FileRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, id.User)
	return f.sources
}

func (f *fakeService) Status() engine.Status { return f.status }

func newTestServer(t *testing.T, svc Service, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(svc, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAsk_ReturnsAnswerAndSources(t *testing.T) {
	// Given: a service with a grounded answer
	svc := &fakeService{answer: &retrieve.Answer{Answer: "Fail over to the secondary.", Sources: []string{"data/qdd/a.docx"}}}
	srv := newTestServer(t, svc, config.ServerConfig{})

	// When: posting a question
	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"query":"what now?"}`))
	require.NoError(t, err)

	// Then: the answer and sources come back as JSON
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "Fail over to the secondary.", body["answer"])
	assert.Equal(t, []any{"data/qdd/a.docx"}, body["sources"])
	assert.Equal(t, []string{"what now?"}, svc.queries)
	assert.Equal(t, []string{auth.MockUser}, svc.users)
}

func TestAsk_SoftFailureIsOK(t *testing.T) {
	svc := &fakeService{answer: &retrieve.Answer{Answer: retrieve.NoDocumentsAnswer}}
	srv := newTestServer(t, svc, config.ServerConfig{})

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"query":""}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[askResponse](t, resp)
	assert.Equal(t, "No documents indexed yet.", body.Answer)
	assert.NotNil(t, body.Sources)
}

func TestAsk_InvalidBody(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, config.ServerConfig{})

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, docerrors.ErrCodeInvalidInput, body.Error.Code)
}

func TestAsk_ProviderErrorMapsToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"completion failed", docerrors.CompletionError("boom", nil), http.StatusBadGateway},
		{"rate limited", docerrors.New(docerrors.ErrCodeProviderRateLimited, "slow", nil), http.StatusTooManyRequests},
		{"circuit open", docerrors.New(docerrors.ErrCodeCircuitOpen, "open", nil), http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"internal", docerrors.InternalError("bug", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{answerErr: tt.err}, config.ServerConfig{})

			resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"query":"q"}`))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.NotEmpty(t, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestIndex_ReturnsIndexedFiles(t *testing.T) {
	// Given: a rebuild covering two files
	svc := &fakeService{rebuild: &engine.RebuildResult{IndexedFiles: []string{"data/qdd/a.docx", "data/plr/b.pptx"}}}
	srv := newTestServer(t, svc, config.ServerConfig{})

	// When: triggering a rebuild
	resp, err := http.Post(srv.URL+"/index", "application/json", nil)
	require.NoError(t, err)

	// Then: status success and the indexed files are returned
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[indexResponse](t, resp)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, []string{"data/qdd/a.docx", "data/plr/b.pptx"}, body.IndexedFiles)
}

func TestIndex_EmptyCorpusReturnsEmptyList(t *testing.T) {
	srv := newTestServer(t, &fakeService{rebuild: &engine.RebuildResult{}}, config.ServerConfig{})

	resp, err := http.Post(srv.URL+"/index", "application/json", nil)
	require.NoError(t, err)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, []any{}, body["indexed_files"])
}

func TestIndex_FailureIsJSONError(t *testing.T) {
	svc := &fakeService{rebuildErr: docerrors.EmbeddingError("provider down", nil)}
	srv := newTestServer(t, svc, config.ServerConfig{})

	resp, err := http.Post(srv.URL+"/index", "application/json", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, docerrors.ErrCodeEmbeddingFailed, body.Error.Code)
}

func TestSources_ListsFileRecords(t *testing.T) {
	svc := &fakeService{sources: []scanner.FileRecord{{Filename: "data/qdd/a.docx", LastModified: "2024-05-01T10:00:00+02:00"}}}
	srv := newTestServer(t, svc, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)

	body := decode[[]map[string]string](t, resp)
	require.Len(t, body, 1)
	assert.Equal(t, "data/qdd/a.docx", body[0]["filename"])
	assert.Equal(t, "2024-05-01T10:00:00+02:00", body[0]["last_modified"])
}

func TestSources_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeService{sources: []scanner.FileRecord{}}, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestAuth_ReturnsMockUser(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, config.ServerConfig{AuthToken: "secret"})

	resp, err := http.Get(srv.URL + "/auth")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"user": "mock_user"}, decode[map[string]string](t, resp))
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeService{status: engine.Status{Generation: "g1", Chunks: 4}}, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)

	body := decode[healthResponse](t, resp)
	assert.Equal(t, healthResponse{Status: "ok", Generation: "g1", Chunks: 4}, body)
}

func TestBearerTokenRequired(t *testing.T) {
	// Given: a token-protected server
	svc := &fakeService{sources: []scanner.FileRecord{}}
	srv := newTestServer(t, svc, config.ServerConfig{AuthToken: "secret"})

	// When: calling without and with the token
	resp, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)
	denied := resp.StatusCode
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/sources", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Then: only the authorized call reaches the service
	assert.Equal(t, http.StatusUnauthorized, denied)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, svc.users, 1)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/ask")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	// Given: one request per minute with a burst of one
	s := NewServer(&fakeService{sources: []scanner.FileRecord{}}, config.ServerConfig{}, nil)
	s.limiter = NewRateLimiter(1, 1)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// When: calling twice
	first, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)
	_ = first.Body.Close()
	second, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)
	_ = second.Body.Close()

	// Then: the second call is throttled
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestRateLimiter_DisabledAndCleanup(t *testing.T) {
	off := NewRateLimiter(0, 0)
	assert.False(t, off.Enabled())
	for range 100 {
		assert.True(t, off.Allow("k"))
	}

	on := NewRateLimiter(60, 1)
	assert.True(t, on.Allow("k"))
	on.cleanup(time.Now().Add(time.Minute))
	_, ok := on.limiters.Load("k")
	assert.False(t, ok)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	// Given: a server on a random port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer(&fakeService{}, config.ServerConfig{ShutdownTimeout: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	// When: the context is cancelled
	cancel()

	// Then: Serve returns cleanly
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
