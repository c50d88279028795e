package sandbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	got Request
	out Outcome
	err error
}

func (s *stubExecutor) Execute(ctx context.Context, req Request) (Outcome, error) {
	s.got = req
	return s.out, s.err
}

func TestClientHandlerRoundTrip(t *testing.T) {
	stub := &stubExecutor{out: Failure(KindExecutionError, "boom", "out", "Traceback: boom")}
	srv := httptest.NewServer(NewHandler(stub).Router())
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	out, err := c.Execute(context.Background(), Request{Code: "print(1)", OutputNamePrefix: "t_1", Environment: "python"})
	require.NoError(t, err)

	assert.Equal(t, "print(1)", stub.got.Code)
	assert.Equal(t, "t_1", stub.got.OutputNamePrefix)
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, KindExecutionError, out.ErrorKind)
	assert.Equal(t, "Traceback: boom", out.Stderr())
}

func TestClientDecodesSuccess(t *testing.T) {
	stub := &stubExecutor{out: Success("/data/output/t_1.html")}
	srv := httptest.NewServer(NewHandler(stub).Router())
	defer srv.Close()

	out, err := NewClient(srv.URL+"/", 0).Execute(context.Background(), Request{Code: "x", OutputNamePrefix: "t_1"})
	require.NoError(t, err)
	assert.True(t, out.IsSuccess())
	assert.Equal(t, "/data/output/t_1.html", out.OutputArtifactPath)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	h := NewHandler(&stubExecutor{}).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errorKind":2000`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"code":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandlerExecutorFailure(t *testing.T) {
	stub := &stubExecutor{err: errors.New("disk full")}
	srv := httptest.NewServer(NewHandler(stub).Router())
	defer srv.Close()

	out, err := NewClient(srv.URL, 0).Execute(context.Background(), Request{Code: "x", OutputNamePrefix: "t_1"})
	require.NoError(t, err)
	assert.Equal(t, KindServiceError, out.ErrorKind)
	assert.Contains(t, out.ErrorMessage, "disk full")
}

func TestClientTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	_, err := NewClient(srv.URL, 0).Execute(context.Background(), Request{Code: "x", OutputNamePrefix: "t_1"})
	assert.Error(t, err)
	srv.Close()

	_, err = NewClient(srv.URL, 0).Execute(context.Background(), Request{Code: "x", OutputNamePrefix: "t_1"})
	assert.Error(t, err, "closed server must surface as a call failure")
}
