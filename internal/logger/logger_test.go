package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestMaskToken(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("A", 28) + "1234" + strings.Repeat("B", 28) + "WXYZ"

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "empty",
			input:  "",
			expect: "",
		},
		{
			name:   "short tokens are fully hidden",
			input:  "ABCDEFGH",
			expect: "********",
		},
		{
			name:   "keeps four characters on each side",
			input:  long,
			expect: "AAAA" + strings.Repeat("*", 56) + "WXYZ",
		},
		{
			name:   "trims whitespace before masking",
			input:  "  ABCDEFGHIJ  ",
			expect: "ABCD**GHIJ",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MaskToken(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, json := range []bool{true, false} {
		l, err := New(json, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("expected debug level to be enabled")
		}
	}
}
