package testutil

import (
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		succeedAt int
		timeout   time.Duration
		want      bool
	}{
		{"immediate", 1, time.Second, true},
		{"eventual", 3, time.Second, true},
		{"never", -1, 50 * time.Millisecond, false},
		{"zero timeout still checks once", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			got := WaitFor(t, func() bool {
				calls++
				return calls == tt.succeedAt
			}, WithTimeout(tt.timeout), WithInterval(5*time.Millisecond))

			if got != tt.want {
				t.Errorf("WaitFor() = %v, want %v", got, tt.want)
			}
			if tt.want && calls != tt.succeedAt {
				t.Errorf("Expected %d calls, got %d", tt.succeedAt, calls)
			}
		})
	}
}
