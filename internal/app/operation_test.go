package app

import "testing"

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name   string
		opType string
	}{
		{name: "commit", opType: "commit"},
		{name: "checkout", opType: "checkout"},
		{name: "read-only command", opType: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.opType)

			if op.Type != tt.opType {
				t.Errorf("Type = %q, want %q", op.Type, tt.opType)
			}
			if op.Recorded() {
				t.Error("Recorded() = true for a fresh operation, want false")
			}
		})
	}
}

func TestOperation_Recorded(t *testing.T) {
	op := NewOperation("commit")
	if op.Recorded() {
		t.Fatal("Recorded() = true before recording")
	}

	op.recorded = true
	if !op.Recorded() {
		t.Error("Recorded() = false after recording")
	}
}
