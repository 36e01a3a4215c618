package core

import (
	"io"
	"testing"
)

func TestAssertf(t *testing.T) {
	SetLogOutput(io.Discard)

	t.Run("true condition does not panic", func(t *testing.T) {
		Assertf(true, "never")
	})

	t.Run("false condition panics with assertion failure", func(t *testing.T) {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("Assertf(false) did not panic")
			}
			if !IsAssertionFailure(r) {
				t.Errorf("recovered %v is not an assertion failure", r)
			}
		}()
		Assertf(false, "handle %d is broken", 7)
	})

	t.Run("plain values are not assertion failures", func(t *testing.T) {
		if IsAssertionFailure("boom") {
			t.Error("IsAssertionFailure(string) = true")
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"", InfoLevel, false},
		{"debug", DebugLevel, false},
		{"WARN", WarnLevel, false},
		{"nonsense", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
