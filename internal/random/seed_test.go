package random

import "testing"

func TestNewSeedVaries(t *testing.T) {
	first, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	second, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct seeds, got %d twice", first)
	}
}

func TestFixedSeed(t *testing.T) {
	seed, err := Fixed(42)()
	if err != nil {
		t.Fatalf("fixed seed: %v", err)
	}
	if seed != 42 {
		t.Fatalf("seed = %d, want 42", seed)
	}
}
