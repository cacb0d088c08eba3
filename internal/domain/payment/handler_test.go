package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/domain/payment"
	"github.com/clinicops/clinic/internal/platform/apperr"
)

func (f *fixture) router(actor *directory.Employee) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(f.as(actor)))
			return next(c)
		}
	})
	payment.NewHandler(f.svc).RegisterRoutes(api)
	return e
}

func TestHandler_Create(t *testing.T) {
	f := newFixture(t)
	line := f.line(f.customer.ID, 2, 600000)
	e := f.router(f.cashier)

	body := `{"customerId":"` + f.customer.ID.String() + `","details":[{"consultedServiceId":"` +
		line.ID.String() + `","amount":"1300000","paymentMethod":"Cash"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-vouchers", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), string(apperr.CodeAmountExceedsDebt)) {
		t.Errorf("expected AmountExceedsDebt in body, got %s", rec.Body.String())
	}

	body = strings.Replace(body, "1300000", "1200000", 1)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payment-vouchers", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["totalAmount"] != "1200000" {
		t.Errorf("expected totalAmount 1200000, got %v", got["totalAmount"])
	}
}

func TestHandler_UnpaidServices(t *testing.T) {
	f := newFixture(t)
	f.line(f.customer.ID, 1, 1000000)
	e := f.router(f.staff)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+f.customer.ID.String()+"/unpaid-services", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["debt"] != "1000000" {
		t.Errorf("expected one line with debt 1000000, got %v", got)
	}
}

func TestHandler_Update_InvalidID(t *testing.T) {
	f := newFixture(t)
	e := f.router(f.admin)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/payment-vouchers/not-a-uuid", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
