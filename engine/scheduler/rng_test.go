package scheduler

import (
	"math/rand"
	"testing"
)

func TestRNG_Deterministic(t *testing.T) {
	rng1 := NewRNG(42)
	rng2 := NewRNG(42)

	for i := 0; i < 20; i++ {
		a := rng1.Roll(6)
		b := rng2.Roll(6)
		if a != b {
			t.Fatalf("roll %d: got %d and %d from same seed", i, a, b)
		}
	}
}

func TestRNG_Roll_Range(t *testing.T) {
	rng := NewRNG(99)

	for i := 0; i < 1000; i++ {
		r := rng.Roll(6)
		if r < 1 || r > 6 {
			t.Fatalf("roll out of range [1,6]: got %d", r)
		}
	}
}

func TestRNG_Chance_Bounds(t *testing.T) {
	rng := NewRNG(7)

	for i := 0; i < 50; i++ {
		if !rng.Chance(100) {
			t.Fatal("Chance(100) should always succeed")
		}
		if rng.Chance(0) {
			t.Fatal("Chance(0) should never succeed")
		}
	}
	if rng.Position() != 0 {
		t.Errorf("certain outcomes consumed %d values, want 0", rng.Position())
	}
}

func TestRNG_Restore(t *testing.T) {
	rng := NewRNG(123)
	for i := 0; i < 17; i++ {
		rng.Roll(100)
	}
	restored := RestoreRNG(rng.Seed(), rng.Position())

	for i := 0; i < 20; i++ {
		a := rng.Roll(100)
		b := restored.Roll(100)
		if a != b {
			t.Fatalf("roll %d after restore: got %d, want %d", i, b, a)
		}
	}
	if restored.Position() != rng.Position() {
		t.Errorf("Position() = %d, want %d", restored.Position(), rng.Position())
	}
}

func TestRNG_RollMatchesInt63n(t *testing.T) {
	rng := NewRNG(2024)
	ref := rand.New(rand.NewSource(2024))

	for i := 0; i < 100; i++ {
		want := int(ref.Int63n(6)) + 1
		if got := rng.Roll(6); got != want {
			t.Fatalf("roll %d: got %d, want %d", i, got, want)
		}
	}
	if rng.Position() != 100 {
		t.Errorf("Position() = %d, want 100", rng.Position())
	}
}
