// Package http serves the JSON API over the ledger, account and
// calibration services.
//
// This file implements the builder used by every handler to write a
// response and the mapping from domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"edufund/internal/core"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	payload    any
	hasPayload bool
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body, encoded when the response is written.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.hasPayload = true
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	return b
}

// Attachment sets a download body with its file name and content type.
func (b *ResponseBuilder) Attachment(filename, contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = contentDisposition(filename)
	b.body = content
	return b
}

// Write sends the built response to w.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	body := b.body
	status := b.statusCode
	if b.hasPayload {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			slog.Error("Encode response failed", "error", err)
			encoded = []byte(`{"error":{"code":"internal","message":"encode response"}}`)
			status = http.StatusInternalServerError
		}
		body = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// contentDisposition names a download with an ASCII fallback for clients
// that ignore the RFC 5987 form.
func contentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 || r == '"' || r == '\\' {
			return -1
		}
		return r
	}, filename)
	if fallback == "" || strings.HasPrefix(fallback, "_") || strings.HasPrefix(fallback, ".") {
		fallback = "report" + fallback
	}
	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + url.PathEscape(filename)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates the standard error envelope.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: errorDetail{Code: code, Message: message}})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", "internal server error")
}

type errorClass struct {
	status int
	code   string
}

// errorClasses is checked in order; the first matching sentinel wins.
var errorClasses = []struct {
	target error
	class  errorClass
}{
	{core.ErrNotFound, errorClass{http.StatusNotFound, "not_found"}},
	{core.ErrMonthNotFound, errorClass{http.StatusNotFound, "not_found"}},
	{core.ErrInvalidTransition, errorClass{http.StatusConflict, "invalid_transition"}},
	{core.ErrUsernameTaken, errorClass{http.StatusConflict, "username_taken"}},
	{core.ErrInvalidCredentials, errorClass{http.StatusUnauthorized, "invalid_credentials"}},
	{core.ErrIdentityMismatch, errorClass{http.StatusUnauthorized, "identity_mismatch"}},
	{core.ErrBudgetMismatch, errorClass{http.StatusUnprocessableEntity, "budget_mismatch"}},
	{core.ErrBudgetItemsRequired, errorClass{http.StatusUnprocessableEntity, "budget_items_required"}},
	{core.ErrOpinionRequired, errorClass{http.StatusUnprocessableEntity, "opinion_required"}},
	{core.ErrInvalidAmount, errorClass{http.StatusUnprocessableEntity, "invalid_amount"}},
	{core.ErrInvalidPhone, errorClass{http.StatusUnprocessableEntity, "invalid_phone"}},
	{core.ErrPasswordMismatch, errorClass{http.StatusUnprocessableEntity, "password_mismatch"}},
	{core.ErrPasswordTooShort, errorClass{http.StatusUnprocessableEntity, "password_too_short"}},
	{core.ErrExperimentRowsRequired, errorClass{http.StatusUnprocessableEntity, "experiment_rows_required"}},
	{core.ErrRequiredField, errorClass{http.StatusUnprocessableEntity, "required_field"}},
	{core.ErrFieldTooLong, errorClass{http.StatusUnprocessableEntity, "field_too_long"}},
	{core.ErrInvalidDonorType, errorClass{http.StatusUnprocessableEntity, "invalid_donor_type"}},
	{core.ErrInvalidCategory, errorClass{http.StatusUnprocessableEntity, "invalid_category"}},
	{core.ErrInvalidDate, errorClass{http.StatusUnprocessableEntity, "invalid_date"}},
	{core.ErrInvalidStatus, errorClass{http.StatusBadRequest, "invalid_status"}},
	{core.ErrInvalidMonth, errorClass{http.StatusBadRequest, "invalid_month"}},
	{core.ErrInvalidKind, errorClass{http.StatusBadRequest, "invalid_kind"}},
}

// classify maps a service error to its status and code. Unknown errors are
// internal and their text is not exposed.
func classify(err error) (errorClass, bool) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.class, true
		}
	}
	return errorClass{http.StatusInternalServerError, "internal"}, false
}

// ServiceError builds the response for err.
func ServiceError(err error) *ResponseBuilder {
	class, known := classify(err)
	if !known {
		return InternalServerError()
	}
	return ErrorResponse(class.status, class.code, err.Error())
}
