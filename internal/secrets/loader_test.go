package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	withValue := filepath.Join(dir, "token")
	if err := os.WriteFile(withValue, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HH_TOUCHER_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		expect  string
		wantErr bool
	}{
		{
			name:   "file wins over value",
			src:    Source{Name: "token", File: withValue, Value: "inline"},
			expect: "from-file",
		},
		{
			name:   "value wins over env",
			src:    Source{Value: " inline ", Env: "HH_TOUCHER_TEST_SECRET"},
			expect: "inline",
		},
		{
			name:   "env is the last resort",
			src:    Source{Env: "HH_TOUCHER_TEST_SECRET"},
			expect: "from-env",
		},
		{
			name:    "empty file",
			src:     Source{File: empty},
			wantErr: true,
		},
		{
			name:    "missing file",
			src:     Source{File: filepath.Join(dir, "missing")},
			wantErr: true,
		},
		{
			name:    "nothing configured",
			src:     Source{Name: "bot token"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	got, err := Optional(Source{Name: "bot token"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty secret, got %q", got)
	}

	if _, err := Optional(Source{File: filepath.Join(t.TempDir(), "missing")}); err == nil || errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected read error, got %v", err)
	}
}
