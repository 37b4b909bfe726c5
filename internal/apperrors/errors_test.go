package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	base := NotFoundf("song", "song %q not found", "abc")
	wrapped := fmt.Errorf("enqueue failed: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the wrapped *Error")
	}
	if got.Kind != NotFound {
		t.Fatalf("got kind %v, want NotFound", got.Kind)
	}
}

func TestAsRejectsPlainErrors(t *testing.T) {
	if _, ok := As(errors.New("boom")); ok {
		t.Fatal("did not expect a plain error to satisfy As")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{Processing, http.StatusUnprocessableEntity},
		{Cancelled, http.StatusUnprocessableEntity},
		{Upstream, http.StatusBadGateway},
		{Persistence, http.StatusServiceUnavailable},
		{Timeout, http.StatusUnprocessableEntity},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestWithDetailsChains(t *testing.T) {
	err := Validationf("BAD_INPUT", "field %s is required", "songId").
		WithDetails(map[string]any{"field": "songId"})
	if err.Details["field"] != "songId" {
		t.Fatalf("expected details to carry field, got %v", err.Details)
	}
}
