package services

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get("missing"); ok {
		t.Fatal("Get returned an engine for an unknown session")
	}

	r.Put("s1", nil)
	if _, ok := r.Get("s1"); !ok {
		t.Fatal("Get missed a registered session")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	r.Remove("s1")
	if _, ok := r.Get("s1"); ok {
		t.Fatal("Get returned a removed session")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}
