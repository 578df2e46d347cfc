package store

import (
	"testing"
	"time"
)

func TestJobType_IsInternal(t *testing.T) {
	cases := map[JobType]bool{
		JobTranscode:       false,
		JobCleanup:         false,
		JobRename:          true,
		JobQualityMismatch: true,
	}
	for jt, want := range cases {
		if got := jt.IsInternal(); got != want {
			t.Errorf("JobType(%q).IsInternal() = %v, want %v", jt, got, want)
		}
	}
}

func TestIsLive(t *testing.T) {
	freshness := 5 * time.Minute

	cases := []struct {
		name string
		age  time.Duration
		live bool
	}{
		{"well within window", time.Minute, true},
		{"just inside boundary", 4*time.Minute + 59*time.Second, true},
		{"just outside boundary", 5*time.Minute + 1*time.Second, false},
		{"long stale", time.Hour, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := Node{LastHeartbeat: time.Now().Add(-c.age)}
			if got := IsLive(n, freshness); got != c.live {
				t.Errorf("IsLive(age=%s) = %v, want %v", c.age, got, c.live)
			}
		})
	}
}
