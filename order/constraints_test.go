package order

import "testing"

func TestSymbolConstraintsValidate(t *testing.T) {
	c := DefaultConstraints()
	c.MaxQty = 1000
	if err := c.Validate(10.01, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Validate(10.015, 100); err == nil {
		t.Fatalf("expected tick size error")
	}
	if err := c.Validate(10.01, 100.5); err == nil {
		t.Fatalf("expected step size error")
	}
	if err := c.Validate(10.01, 0); err == nil {
		t.Fatalf("expected min qty error")
	}
	if err := c.Validate(10.01, 1001); err == nil {
		t.Fatalf("expected max qty error")
	}
	if err := c.Validate(0.10, 10); err == nil {
		t.Fatalf("expected min price error")
	}
}

func TestNormalizeQty(t *testing.T) {
	c := DefaultConstraints()
	if got := c.NormalizeQty(149.9); got != 149 {
		t.Fatalf("expected 149 got %f", got)
	}
	if got := (SymbolConstraints{}).NormalizeQty(1.5); got != 1.5 {
		t.Fatalf("expected passthrough got %f", got)
	}
}
