package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/inkwell/monetization-service/internal/money"
	"github.com/inkwell/monetization-service/internal/store"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: store.ErrAuthorNotFound, want: http.StatusNotFound},
		{err: store.ErrPayoutNotFound, want: http.StatusNotFound},
		{err: money.ErrInvalidAmount, want: http.StatusBadRequest},
		{err: money.ErrCurrencyMismatch, want: http.StatusBadRequest},
		{err: store.ErrInsufficientBalance, want: http.StatusConflict},
		{err: store.ErrPayoutDestinationNotConfigured, want: http.StatusConflict},
		{err: store.ErrInvalidPayoutTransition, want: http.StatusConflict},
		{err: store.ErrConcurrentModification, want: http.StatusConflict},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := statusForError(tt.err)
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestStatusForError_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("reserving batch: %w", store.ErrInsufficientBalance)
	if got := statusForError(wrapped); got != http.StatusConflict {
		t.Fatalf("expected wrapped errors to map through errors.Is, got %d", got)
	}
}
