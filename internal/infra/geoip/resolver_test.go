package geoip

import (
	"errors"
	"testing"
)

func TestOpenEmptyPathDisablesLookup(t *testing.T) {
	r, err := Open("  ")
	if err != nil || r != nil {
		t.Fatalf("Open(empty) = %v, %v", r, err)
	}
	if r.Lookup() != nil {
		t.Fatalf("nil resolver should not provide a lookup")
	}
	if _, err := r.Country("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Country err = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatalf("expected error for missing database")
	}
}
