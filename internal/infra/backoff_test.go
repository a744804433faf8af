package infra

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name  string
		retry int
		want  time.Duration
	}{
		{"Negative retry", -1, 1 * time.Second},
		{"First retry", 0, 1 * time.Second},
		{"Second retry", 1, 2 * time.Second},
		{"Third retry", 2, 4 * time.Second},
		{"Capped", 10, 60 * time.Second},
		{"Huge retry count", 40, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateBackoff(tt.retry); got != tt.want {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retry, got, tt.want)
			}
		})
	}
}
