package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable, machine-readable identifier of a workflow error.
type Code string

const (
	CodeUnauthorized                Code = "Unauthorized"
	CodeMissingEmployeeID           Code = "MissingEmployeeId"
	CodeMissingClinic               Code = "MissingClinic"
	CodeValidation                  Code = "ValidationError"
	CodeNotFound                    Code = "NotFound"
	CodePermissionDenied            Code = "PermissionDenied"
	CodeCustomerConflict            Code = "CustomerConflict"
	CodePastAppointmentNotAllowed   Code = "PastAppointmentNotAllowed"
	CodeInvalidTimeOrder            Code = "InvalidTimeOrder"
	CodeCheckinRequired             Code = "CheckinRequired"
	CodeInvalidPrice                Code = "InvalidPrice"
	CodeAlreadyConfirmed            Code = "AlreadyConfirmed"
	CodeAppointmentNotCheckedIn     Code = "AppointmentNotCheckedIn"
	CodeServiceNotConfirmed         Code = "ServiceNotConfirmed"
	CodeAppointmentCustomerMismatch Code = "AppointmentCustomerMismatch"
	CodeInvalidService              Code = "InvalidService"
	CodeAmountExceedsDebt           Code = "AmountExceedsDebt"
	CodeInUse                       Code = "InUse"
	CodeInternal                    Code = "InternalError"
)

var statusByCode = map[Code]int{
	CodeUnauthorized:                http.StatusUnauthorized,
	CodeMissingEmployeeID:           http.StatusUnauthorized,
	CodeMissingClinic:               http.StatusUnauthorized,
	CodeValidation:                  http.StatusBadRequest,
	CodeNotFound:                    http.StatusNotFound,
	CodePermissionDenied:            http.StatusForbidden,
	CodeCustomerConflict:            http.StatusConflict,
	CodePastAppointmentNotAllowed:   http.StatusBadRequest,
	CodeInvalidTimeOrder:            http.StatusBadRequest,
	CodeCheckinRequired:             http.StatusBadRequest,
	CodeInvalidPrice:                http.StatusBadRequest,
	CodeAlreadyConfirmed:            http.StatusConflict,
	CodeAppointmentNotCheckedIn:     http.StatusBadRequest,
	CodeServiceNotConfirmed:         http.StatusBadRequest,
	CodeAppointmentCustomerMismatch: http.StatusBadRequest,
	CodeInvalidService:              http.StatusBadRequest,
	CodeAmountExceedsDebt:           http.StatusBadRequest,
	CodeInUse:                       http.StatusConflict,
	CodeInternal:                    http.StatusInternalServerError,
}

// Error is a user-facing workflow error carrying a code and an HTTP status class.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with the status class registered for code.
func New(code Code, format string, args ...interface{}) *Error {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Status: status}
}

func Unauthorized() *Error {
	return New(CodeUnauthorized, "authentication required")
}

func Validation(format string, args ...interface{}) *Error {
	return New(CodeValidation, format, args...)
}

// NotFound reports that the named entity does not exist.
func NotFound(entity string) *Error {
	return New(CodeNotFound, "%s not found", entity)
}

func PermissionDenied(reason string) *Error {
	return New(CodePermissionDenied, "%s", reason)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, CodeInternal for foreign errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// StatusOf returns the HTTP status class for err.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
