package importer

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input     string
		want      time.Time
		wantNaive bool
		wantNil   bool
		wantErr   bool
	}{
		{input: "", wantNil: true},
		{input: "   ", wantNil: true},
		{input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), wantNaive: true},
		{input: "2024-03-01T10:30", want: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), wantNaive: true},
		{input: "2024-03-01 10:30:15", want: time.Date(2024, 3, 1, 10, 30, 15, 0, time.UTC), wantNaive: true},
		{input: "2024-03-01T10:30:15.250", want: time.Date(2024, 3, 1, 10, 30, 15, 250_000_000, time.UTC), wantNaive: true},
		{input: "2024-03-01T10:30:15Z", want: time.Date(2024, 3, 1, 10, 30, 15, 0, time.UTC)},
		{input: "2024-03-01T12:30:15+02:00", want: time.Date(2024, 3, 1, 10, 30, 15, 0, time.UTC)},
		{input: "03/01/2024", wantErr: true},
		{input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		got, naive, err := parseTimestamp(tt.input)
		if tt.wantErr {
			if err == nil || err.Error() != "Invalid last_interacted_at format" {
				t.Errorf("parseTimestamp(%q) error = %v, want invalid format", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTimestamp(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if tt.wantNil {
			if got != nil {
				t.Errorf("parseTimestamp(%q) = %v, want nil", tt.input, got)
			}
			continue
		}
		if got == nil || !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if naive != tt.wantNaive {
			t.Errorf("parseTimestamp(%q) naive = %v, want %v", tt.input, naive, tt.wantNaive)
		}
	}
}

func TestIsoformat(t *testing.T) {
	plain := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	fractional := time.Date(2024, 3, 1, 10, 30, 0, 500_000_000, time.UTC)

	if got := isoformat(plain, true); got != "2024-03-01T10:30:00" {
		t.Errorf("isoformat(naive) = %q", got)
	}
	if got := isoformat(plain, false); got != "2024-03-01T10:30:00+00:00" {
		t.Errorf("isoformat(zoned) = %q", got)
	}
	if got := isoformat(fractional, true); got != "2024-03-01T10:30:00.500000" {
		t.Errorf("isoformat(fractional) = %q", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{" , ,", nil},
		{"vip", []string{"vip"}},
		{" vip, west ,,east", []string{"vip", "west", "east"}},
	}

	for _, tt := range tests {
		got := splitList(tt.input)
		if len(got) != len(tt.want) || (tt.want == nil) != (got == nil) {
			t.Errorf("splitList(%q) = %#v, want %#v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
