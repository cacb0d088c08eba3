package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

func TestNotFound(t *testing.T) {
	if err := NotFound(nil, "appointment"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := NotFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "appointment"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	boom := errors.New("connection reset")
	err := NotFound(boom, "appointment")
	if !errors.Is(err, boom) || apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected wrapped infrastructure error, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_customer_day_key"})
	if !IsUniqueViolation(err, "appointments_customer_day_key") {
		t.Error("expected match on constraint")
	}
	if !IsUniqueViolation(err, "") {
		t.Error("expected match on any constraint")
	}
	if IsUniqueViolation(err, "other_key") {
		t.Error("expected no match on a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Error("plain error is not a unique violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := fmt.Errorf("delete appointment: %w", &pgconn.PgError{Code: "23503", ConstraintName: "consulted_services_appointment_id_fkey"})
	if !IsForeignKeyViolation(err) {
		t.Error("expected wrapped 23503 to match")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not a foreign key violation")
	}
	if IsForeignKeyViolation(errors.New("plain")) || IsForeignKeyViolation(nil) {
		t.Error("non-pg errors must not match")
	}
}
