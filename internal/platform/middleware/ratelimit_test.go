package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
)

func newLimitedServer(rps float64) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(rps))
	e.GET("/api/v1/appointments", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return e
}

func TestRateLimit_DeniesOverBurst(t *testing.T) {
	e := newLimitedServer(1) // burst 2

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("expected first two requests to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected third request to be limited, got %d", codes[2])
	}
}

func TestRateLimit_SkipsPublicPaths(t *testing.T) {
	e := newLimitedServer(1)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 on public path, got %d", i, rec.Code)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	e := newLimitedServer(0)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected no limiting, got %d", rec.Code)
		}
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	c := e.NewContext(req, httptest.NewRecorder())

	key, _ := rateKey(c)
	if key != "ip:10.0.0.3" {
		t.Errorf("expected ip key, got %q", key)
	}

	id := uuid.New()
	req = req.WithContext(auth.WithActor(req.Context(), auth.Actor{EmployeeID: id}))
	c.SetRequest(req)
	key, _ = rateKey(c)
	if key != "emp:"+id.String() {
		t.Errorf("expected employee key, got %q", key)
	}
}
