package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "30s", want: 30 * time.Second},
		{input: "5m", want: 5 * time.Minute},
		{input: "12h", want: 12 * time.Hour},
		{input: "1d", want: 24 * time.Hour},
		{input: "1w", want: 7 * 24 * time.Hour},
		{input: "1d12h", want: 36 * time.Hour},
		{input: "2w3d", want: 17 * 24 * time.Hour},
		{input: "1W", want: 7 * 24 * time.Hour},
		{input: " 1d ", want: 24 * time.Hour},
		{input: "", wantErr: true},
		{input: "1x", wantErr: true},
		{input: "d", wantErr: true},
		{input: "1d5", wantErr: true},
		{input: "1.5h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Std() != tt.want {
				t.Errorf("ParseDuration(%q) = %s, want %s", tt.input, got.Std(), tt.want)
			}
		})
	}
}

func TestDuration_String(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "1w"},
		{17 * 24 * time.Hour, "2w3d"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Duration(tt.input).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	var doc struct {
		TTL Duration `yaml:"ttl"`
	}

	if err := yaml.Unmarshal([]byte("ttl: 2w\n"), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.TTL.Std() != 14*24*time.Hour {
		t.Errorf("expected 2w, got %s", doc.TTL)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "ttl: 2w\n" {
		t.Errorf("unexpected marshal output: %q", out)
	}

	if err := yaml.Unmarshal([]byte("ttl: [1, 2]\n"), &doc); err == nil {
		t.Error("expected error for non-scalar duration")
	}
	if err := yaml.Unmarshal([]byte("ttl: 2 weeks\n"), &doc); err == nil {
		t.Error("expected error for invalid duration")
	}
}
