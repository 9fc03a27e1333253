package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/weatherman/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, http.StatusBadRequest, model.NewInvalidCredentialsError())

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredentials)
	}
	if body.Message == "" || body.Category == "" || body.Action == "" {
		t.Errorf("all fields should be populated: %+v", body)
	}
}

func TestStatusCodeForError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		apiErr *model.APIError
		want   int
	}{
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusBadRequest},
		{"validation failed", model.NewValidationError("test"), http.StatusBadRequest},
		{"unauthenticated", model.NewUnauthenticatedError(), http.StatusUnauthorized},
		{"conflict", model.NewEmailConflictError(), http.StatusConflict},
		{"federation error", model.NewFederationError(), http.StatusBadGateway},
		{"weather fetch failed", model.NewWeatherFetchFailedError(), http.StatusBadGateway},
		{"store unavailable", model.NewStoreUnavailableError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCodeForError(tt.apiErr); got != tt.want {
				t.Errorf("StatusCodeForError(%s) = %d, want %d", tt.apiErr.Code, got, tt.want)
			}
		})
	}
}

func TestWriteError_APIError_UsesMappedStatus(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, model.NewEmailConflictError())

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestWriteError_UnknownError_Returns500WithoutDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, errors.New("pq: connection refused to db at 10.0.0.5"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	// 内部エラーの詳細はレスポンスに漏らさない
	if body.Message == "pq: connection refused to db at 10.0.0.5" {
		t.Error("internal error details must not leak to the response")
	}
}
