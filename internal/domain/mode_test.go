package domain

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"assessment", ModeAssessment, false},
		{" PBL ", ModePBL, false},
		{"discovery", ModeDiscovery, false},
		{"quiz", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownMode) {
					t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProgramStatusExternal(t *testing.T) {
	tests := []struct {
		status ProgramStatus
		want   string
	}{
		{ProgramPending, "pending"},
		{ProgramActive, "active"},
		{ProgramCompleted, "completed"},
		{ProgramAbandoned, "expired"},
	}
	for _, tt := range tests {
		if got := tt.status.External(); got != tt.want {
			t.Errorf("%s.External() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"zh", "zh"},
		{"zh-TW", "zh"},
		{"ES", "es"},
		{"es_MX", "es"},
		{"fr", "en"},
		{"", "en"},
	}
	for _, tt := range tests {
		if got := NormalizeLanguage(tt.in); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
