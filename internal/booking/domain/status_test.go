package domain

import "testing"

func TestStatusTransitionTable(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusPending:  {StatusAccepted: true, StatusRejected: true},
		StatusAccepted: {StatusCompleted: true},
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[from][to]
			if got := from.CanTransition(to); got != want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusCancel(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusPending || s == StatusAccepted
		if got := s.CanCancel(); got != want {
			t.Fatalf("CanCancel(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.Terminal() {
			continue
		}
		for _, next := range AllStatuses {
			if s.CanTransition(next) {
				t.Fatalf("terminal %s must not transition to %s", s, next)
			}
		}
		if s.CanCancel() {
			t.Fatalf("terminal %s must not be cancellable", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" Completed "); !ok || s != StatusCompleted {
		t.Fatalf("expected completed, got %q %v", s, ok)
	}
	if _, ok := ParseStatus("done"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestCalculateTotalAmount(t *testing.T) {
	cases := []struct {
		rate     float64
		duration int
		want     float64
	}{
		{25, 120, 50},
		{45, 90, 67.5},
		{33.33, 45, 25},
		{19.99, 15, 5},
		{100, 480, 800},
	}
	for _, tc := range cases {
		if got := CalculateTotalAmount(tc.rate, tc.duration); got != tc.want {
			t.Fatalf("CalculateTotalAmount(%v, %d) = %v, want %v", tc.rate, tc.duration, got, tc.want)
		}
	}
}
