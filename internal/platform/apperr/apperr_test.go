package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestNew_StatusClass(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeMissingEmployeeID, http.StatusUnauthorized},
		{CodeMissingClinic, http.StatusUnauthorized},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodePermissionDenied, http.StatusForbidden},
		{CodeCustomerConflict, http.StatusConflict},
		{CodeAlreadyConfirmed, http.StatusConflict},
		{CodeAmountExceedsDebt, http.StatusBadRequest},
		{CodeInUse, http.StatusConflict},
		{Code("Unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").Status; got != tt.want {
			t.Errorf("New(%s).Status = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Error("expected empty code for nil")
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Error("expected InternalError for foreign error")
	}
	wrapped := fmt.Errorf("create: %w", NotFound("appointment"))
	if !Is(wrapped, CodeNotFound) {
		t.Errorf("expected wrapped NotFound, got %s", CodeOf(wrapped))
	}
	if StatusOf(wrapped) != http.StatusNotFound {
		t.Errorf("expected 404, got %d", StatusOf(wrapped))
	}
}

func TestHTTPErrorHandler(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	h := HTTPErrorHandler(logger)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   Code
	}{
		{"workflow error", New(CodeCustomerConflict, "already booked"), http.StatusConflict, CodeCustomerConflict},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "RateLimited"},
		{"foreign error", errors.New("db down"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var body struct {
				Error struct {
					Code    Code   `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Error.Code)
			}
			if tt.wantCode == CodeInternal && body.Error.Message != "internal server error" {
				t.Errorf("internal message leaked: %q", body.Error.Message)
			}
		})
	}
}
