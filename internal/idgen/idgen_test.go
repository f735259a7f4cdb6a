package idgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	tests := []struct {
		format      Format
		wantVersion uuid.Version
		wantErr     bool
	}{
		{"", 4, false},
		{FormatUUID, 4, false},
		{FormatUUIDv7, 7, false},
		{"ulid", 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			g, err := New(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			id, err := g.NewID()
			if err != nil {
				t.Fatalf("NewID() error = %v", err)
			}
			parsed, err := uuid.Parse(id)
			if err != nil {
				t.Fatalf("NewID() returned %q: %v", id, err)
			}
			if parsed.Version() != tt.wantVersion {
				t.Errorf("version = %d, want %d", parsed.Version(), tt.wantVersion)
			}
		})
	}
}

func TestNewID_Unique(t *testing.T) {
	for _, format := range []Format{FormatUUID, FormatUUIDv7} {
		g, err := New(format)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id, err := g.NewID()
			if err != nil {
				t.Fatal(err)
			}
			if seen[id] {
				t.Fatalf("%s: duplicate id %s", format, id)
			}
			seen[id] = true
		}
	}
}
