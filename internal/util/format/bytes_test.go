package format

import (
	"testing"
	"time"
)

func TestHumanizeBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0.0 B"},
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tc := range cases {
		if got := HumanizeBytes(tc.in); got != tc.want {
			t.Errorf("HumanizeBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClock(t *testing.T) {
	if got := Clock(3723 * time.Second); got != "01:02:03" {
		t.Errorf("Clock = %q, want 01:02:03", got)
	}
	if got := Clock(-time.Second); got != "00:00:00" {
		t.Errorf("Clock negative = %q, want 00:00:00", got)
	}
}
