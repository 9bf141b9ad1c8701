package batch

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/devsearch/internal/domain/device"
)

func TestNewOK(t *testing.T) {
	r := NewOK(device.Document{ID: 1, Title: "Galaxy S23"})
	if r.Document().ID != 1 {
		t.Errorf("Document().ID = %d", r.Document().ID)
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("index down")
	r := NewError(device.Document{ID: 7, Content: "flagship phone"}, err)
	if r.Document().ID != 7 {
		t.Errorf("Document().ID = %d", r.Document().ID)
	}
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}
