// Package domain defines the core domain models for framesync.
package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateNodeID(t *testing.T) {
	id, err := GenerateNodeID()
	if err != nil {
		t.Fatalf("GenerateNodeID() error = %v", err)
	}
	if !strings.HasPrefix(id, NodeIDPrefix) {
		t.Errorf("GenerateNodeID() = %q, want prefix %q", id, NodeIDPrefix)
	}
	if len(id) != 30 {
		t.Errorf("len(GenerateNodeID()) = %d, want 30", len(id))
	}
	if !IsGeneratedNodeID(id) {
		t.Errorf("IsGeneratedNodeID(%q) = false", id)
	}
	if err := ValidateNodeID(id); err != nil {
		t.Errorf("ValidateNodeID(%q) error = %v", id, err)
	}

	other, _ := GenerateNodeID()
	if other == id {
		t.Error("GenerateNodeID() returned duplicate IDs")
	}
}

func TestIsGeneratedNodeID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"fsn-01hqz3k9m2n4p5r6s7t8v9w0x1", true},
		{"FSN-01HQZ3K9M2N4P5R6S7T8V9W0X1", true},
		{"fsn-short", false},
		{"projector-left", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsGeneratedNodeID(tt.id); got != tt.want {
			t.Errorf("IsGeneratedNodeID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"projector-left", false},
		{"gpu_0.wall", false},
		{"", true},
		{"has space", true},
		{"slash/name", true},
		{strings.Repeat("a", MaxNodeIDLen), false},
		{strings.Repeat("a", MaxNodeIDLen+1), true},
	}
	for _, tt := range tests {
		err := ValidateNodeID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateNodeID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ValidateNodeID(%q) error = %v, want ErrInvalidConfig", tt.id, err)
		}
	}
}
