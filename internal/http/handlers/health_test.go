package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/knowledge-registry/internal/clients/processor"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

type stubProcessor struct {
	available bool
}

func (s *stubProcessor) Process(ctx context.Context, req processor.ProcessRequest) (*processor.ProcessResult, error) {
	return &processor.ProcessResult{}, nil
}
func (s *stubProcessor) Health(ctx context.Context) error { return nil }
func (s *stubProcessor) Probe(ctx context.Context) bool   { return s.available }
func (s *stubProcessor) Available() bool                  { return s.available }

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(nil)
	r := gin.New()
	r.GET("/healthcheck", h.HealthCheck)

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body: got=%q want=%q", rec.Body.String(), "ok")
	}
}

func TestReadinessTracksProcessor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		proc processor.Client
		want int
	}{
		{name: "available", proc: &stubProcessor{available: true}, want: http.StatusOK},
		{name: "unavailable", proc: &stubProcessor{available: false}, want: http.StatusServiceUnavailable},
		{name: "no client", proc: nil, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.proc)
			r := gin.New()
			r.GET("/healthcheck/ready", h.Readiness)

			req := httptest.NewRequest(http.MethodGet, "/healthcheck/ready", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}
