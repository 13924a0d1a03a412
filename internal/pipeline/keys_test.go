package pipeline

import (
	"testing"
	"time"
)

func TestKeyGenerator_Next(t *testing.T) {
	g := NewKeyGenerator()

	for want := int64(1); want <= 3; want++ {
		if got := g.Next(EntityCustomer); got != want {
			t.Errorf("Next(customer) = %d, want %d", got, want)
		}
	}

	// Entity types are independent sequences.
	if got := g.Next(EntityProduct); got != 1 {
		t.Errorf("Next(product) = %d, want 1", got)
	}
}

func TestKeyGenerator_Seed(t *testing.T) {
	g := NewKeyGenerator()
	g.Seed(EntityCustomer, 42)

	if got := g.Next(EntityCustomer); got != 43 {
		t.Errorf("Next after Seed(42) = %d, want 43", got)
	}

	// Seeding below the watermark must not move it backwards.
	g.Seed(EntityCustomer, 10)
	if got := g.Next(EntityCustomer); got != 44 {
		t.Errorf("Next after low Seed = %d, want 44", got)
	}
}

func TestComputeRowHash_OrderIndependent(t *testing.T) {
	a := ComputeRowHash(map[string]string{"gender": "Male", "age": "34"})
	b := ComputeRowHash(map[string]string{"age": "34", "gender": "Male"})
	if a != b {
		t.Errorf("hash depends on attribute order: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestComputeRowHash_Sensitivity(t *testing.T) {
	base := ComputeRowHash(map[string]string{"gender": "Male", "age": "34"})

	tests := []struct {
		name  string
		attrs map[string]string
	}{
		{"changed value", map[string]string{"gender": "Male", "age": "35"}},
		{"changed attribute name", map[string]string{"gender": "Male", "years": "34"}},
		{"extra attribute", map[string]string{"gender": "Male", "age": "34", "x": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeRowHash(tt.attrs); got == base {
				t.Errorf("hash unchanged for %v", tt.attrs)
			}
		})
	}
}

func TestDateKey(t *testing.T) {
	d := time.Date(2023, 7, 9, 15, 30, 0, 0, time.UTC)
	if got := dateKey(d); got != 20230709 {
		t.Errorf("dateKey = %d, want 20230709", got)
	}
}
