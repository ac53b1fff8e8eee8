package scheduler

import "testing"

func TestAddJobValidatesExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("0 * * * *", func() {}); err != nil {
		t.Errorf("expected valid cron expression accepted, got %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
