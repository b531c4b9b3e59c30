package chain

import "testing"

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(
		Chain{ID: 1, Name: "XCH", Decimals: 8},
		Chain{ID: 2, Name: "YCH", Decimals: 2},
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	if c := r.Chain(1); c == nil || c.Name != "XCH" {
		t.Errorf("expected chain 1, got %+v", c)
	}
	if c := r.Chain(3); c != nil {
		t.Errorf("expected nil for unknown chain, got %+v", c)
	}
	if d, ok := r.Decimals(2); !ok || d != 2 {
		t.Errorf("expected decimals 2, got %d (%v)", d, ok)
	}
	if _, ok := r.Decimals(3); ok {
		t.Error("expected missing decimals for unknown chain")
	}
}

func TestNewRegistryRejectsInvalidChains(t *testing.T) {
	tests := []struct {
		name   string
		chains []Chain
	}{
		{"zero id", []Chain{{ID: 0, Name: "XCH", Decimals: 2}}},
		{"negative decimals", []Chain{{ID: 1, Name: "XCH", Decimals: -1}}},
		{"decimals too large", []Chain{{ID: 1, Name: "XCH", Decimals: 19}}},
		{"duplicate id", []Chain{{ID: 1, Name: "XCH", Decimals: 2}, {ID: 1, Name: "YCH", Decimals: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.chains...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestState(t *testing.T) {
	s := NewState()
	if s.Height() != 0 {
		t.Errorf("expected initial height 0, got %d", s.Height())
	}

	b := Block{ID: 42, Height: 7, Timestamp: 1000}
	s.SetLastBlock(b)
	if s.Height() != 7 {
		t.Errorf("expected height 7, got %d", s.Height())
	}
	if s.LastBlock() != b {
		t.Errorf("expected last block %+v, got %+v", b, s.LastBlock())
	}
}
