package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
	"apex-build/internal/orchestrator"
	"apex-build/internal/registry"
	"apex-build/internal/sandbox"
	"apex-build/internal/wsstatus"
)

// fakeManager is the same scripted sandbox.Manager stand-in used by
// internal/orchestrator's own tests, duplicated here so the facade can be
// exercised end to end (HTTP request in, JSON verdict out) without a real
// container runtime.
type fakeManager struct {
	script []codec.ResultDoc
	calls  int
	files  map[string][]byte
}

func (f *fakeManager) Acquire(ctx context.Context, language judge.Language, limits judge.ResourceLimits) (sandbox.Handle, func(), error) {
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	return sandbox.Handle{ID: "fake", Language: language}, func() {}, nil
}

func (f *fakeManager) Upload(ctx context.Context, h sandbox.Handle, name string, content []byte) error {
	f.files[name] = content
	return nil
}

func (f *fakeManager) Exec(ctx context.Context, h sandbox.Handle, command []string, deadline time.Duration) (sandbox.ExecResult, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		return sandbox.ExecResult{}, fmt.Errorf("fakeManager: no scripted result for call %d", idx)
	}
	resultBytes, err := codec.EncodeResult(f.script[idx])
	if err != nil {
		return sandbox.ExecResult{}, err
	}
	f.files["result.json"] = resultBytes
	return sandbox.ExecResult{ExitCode: 0}, nil
}

func (f *fakeManager) Download(ctx context.Context, h sandbox.Handle, path string) ([]byte, error) {
	b, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("fakeManager: no file %q", path)
	}
	return b, nil
}

func newTestHandler(t *testing.T, fm *fakeManager) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := registry.New(registry.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, reg.Set(judge.LanguageC, "judge-harness-c:latest"))

	orch := orchestrator.New(fm, nil)
	hub := wsstatus.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	return New(orch, reg, hub, "test-build")
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func intSubmission() judge.Submission {
	return judge.Submission{
		Language: judge.LanguageC,
		Source:   "int solve(int *a) { *a = *a * 2; return 0; }",
		Parameters: []judge.Parameter{
			{Name: "a", Type: judge.TypeInt, InitialValue: float64(3)},
		},
		Expected:     map[string]interface{}{"a": float64(6)},
		FunctionType: judge.TypeInt,
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t, &fakeManager{})
	r := gin.New()
	h.Register(r)

	rec := doRequest(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StandardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHandleLanguages(t *testing.T) {
	h := newTestHandler(t, &fakeManager{})
	r := gin.New()
	h.Register(r)

	rec := doRequest(r, http.MethodGet, "/api/v1/languages", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"languages":["c"]`)
}

func TestHandleLimits(t *testing.T) {
	h := newTestHandler(t, &fakeManager{})
	r := gin.New()
	h.Register(r)

	rec := doRequest(r, http.MethodGet, "/api/v1/limits", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "max_batch_size")
}

func TestHandleEvaluate_Success(t *testing.T) {
	fm := &fakeManager{
		script: []codec.ResultDoc{
			{Status: string(judge.StatusSuccess),
				Actual:   map[string]interface{}{"a": float64(6)},
				Expected: map[string]interface{}{"a": float64(6)}},
		},
	}
	h := newTestHandler(t, fm)
	r := gin.New()
	h.Register(r)

	rec := doRequest(r, http.MethodPost, "/api/v1/evaluate", intSubmission())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    judge.Verdict `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, judge.StatusSuccess, resp.Data.Status)
}

func TestHandleEvaluate_InvalidSubmissionReturnsConfigError(t *testing.T) {
	h := newTestHandler(t, &fakeManager{})
	r := gin.New()
	h.Register(r)

	bad := judge.Submission{Language: judge.Language("rust"), Source: "x"}
	rec := doRequest(r, http.MethodPost, "/api/v1/evaluate", bad)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp StandardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFIG_INVALID", resp.Error.Code)
}

func TestHandleEvaluateBatch_PreservesOrder(t *testing.T) {
	fm := &fakeManager{
		script: []codec.ResultDoc{
			{Status: string(judge.StatusSuccess)},
			{Status: string(judge.StatusWrongAnswer)},
		},
	}
	h := newTestHandler(t, fm)
	r := gin.New()
	h.Register(r)

	body := batchRequest{Submissions: []judge.Submission{intSubmission(), intSubmission()}}
	rec := doRequest(r, http.MethodPost, "/api/v1/evaluate/batch", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Verdicts []judge.Verdict `json:"verdicts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Verdicts, 2)
	assert.Equal(t, judge.StatusSuccess, resp.Data.Verdicts[0].Status)
	assert.Equal(t, judge.StatusWrongAnswer, resp.Data.Verdicts[1].Status)
}

func TestHandleEvaluateBatch_OverMaxSizeRejected(t *testing.T) {
	h := newTestHandler(t, &fakeManager{})
	r := gin.New()
	h.Register(r)

	subs := make([]judge.Submission, judge.MaxBatchSize+1)
	for i := range subs {
		subs[i] = intSubmission()
	}
	rec := doRequest(r, http.MethodPost, "/api/v1/evaluate/batch", batchRequest{Submissions: subs})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluateBatchOptimized_SharesSourceAndLanguage(t *testing.T) {
	fm := &fakeManager{
		script: []codec.ResultDoc{
			{Status: string(judge.StatusSuccess)},
			{Status: string(judge.StatusSuccess)},
		},
	}
	h := newTestHandler(t, fm)
	r := gin.New()
	h.Register(r)

	body := optimizedBatchRequest{
		Language: judge.LanguageC,
		Source:   "int solve(int *a) { *a = *a * 2; return 0; }",
		Configs: []judge.Submission{
			{Parameters: []judge.Parameter{{Name: "a", Type: judge.TypeInt, InitialValue: float64(1)}}, Expected: map[string]interface{}{"a": float64(2)}, FunctionType: judge.TypeInt},
			{Parameters: []judge.Parameter{{Name: "a", Type: judge.TypeInt, InitialValue: float64(2)}}, Expected: map[string]interface{}{"a": float64(4)}, FunctionType: judge.TypeInt},
		},
	}
	rec := doRequest(r, http.MethodPost, "/api/v1/evaluate/batch/optimized", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Verdicts []judge.Verdict `json:"verdicts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Verdicts, 2)
	assert.Equal(t, 2, fm.calls)
}
