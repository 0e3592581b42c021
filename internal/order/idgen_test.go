package order

import (
	"testing"
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

func TestIdGeneratorFormatAndIncrement(t *testing.T) {
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	gen := NewIdGenerator("001", func() time.Time { return fixed })

	first := gen.Generate("S1")
	second := gen.Generate("S1")
	other := gen.Generate("S2")

	if first.String() != "O-20260731-120000-001-S1-1" {
		t.Fatalf("unexpected first id: %s", first.String())
	}
	if second.String() != "O-20260731-120000-001-S1-2" {
		t.Fatalf("unexpected second id: %s", second.String())
	}
	if other.String() != "O-20260731-120000-001-S2-1" {
		t.Fatalf("expected independent counter per strategy tag, got: %s", other.String())
	}
}
