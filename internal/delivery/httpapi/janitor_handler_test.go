package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/usecase"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubJanitor struct {
	report *usecase.JanitorReport
	err    error
	calls  int
}

func (s *stubJanitor) Run(_ context.Context, trigger string, _ usecase.JanitorOptions) (*usecase.JanitorReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &usecase.JanitorReport{Trigger: trigger}, nil
}

func TestJanitorRunRejectsBadToken(t *testing.T) {
	stub := &stubJanitor{}
	h := NewJanitorHandler(stub, "s3cret", zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodPost, "/internal/janitor/run", nil)
	req.Header.Set("X-Janitor-Token", "wrong")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, stub.calls)
}

func TestJanitorRunRejectsWhenSecretUnset(t *testing.T) {
	stub := &stubJanitor{}
	h := NewJanitorHandler(stub, "", zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodPost, "/internal/janitor/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, stub.calls)
}

func TestJanitorRunGateClosedMapsTo429(t *testing.T) {
	stub := &stubJanitor{err: &usecase.GateClosedError{NextAllowedAt: time.Now().Add(45 * time.Second)}}
	h := NewJanitorHandler(stub, "s3cret", zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodPost, "/internal/janitor/run", nil)
	req.Header.Set("X-Janitor-Token", "s3cret")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestJanitorRunHappyPath(t *testing.T) {
	stub := &stubJanitor{report: &usecase.JanitorReport{Trigger: "http", EventsBackfilled: 2}}
	h := NewJanitorHandler(stub, "s3cret", zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodPost, "/internal/janitor/run", nil)
	req.Header.Set("X-Janitor-Token", "s3cret")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events_backfilled":2`)
}

func TestWriteErrorKindMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.E(domain.KindInvalidPayload, "bad"), http.StatusBadRequest},
		{domain.E(domain.KindInsufficientStock, "short"), http.StatusConflict},
		{domain.E(domain.KindIdempotencyConflict, "reuse"), http.StatusConflict},
		{domain.E(domain.KindPriceConfigError, "hole"), http.StatusUnprocessableEntity},
		{domain.E(domain.KindRateLimited, "slow down"), http.StatusTooManyRequests},
		{domain.E(domain.KindProviderError, "psp down"), http.StatusBadGateway},
		{domain.ErrOrderNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
	}
}
