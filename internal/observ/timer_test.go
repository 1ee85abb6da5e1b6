package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	load := tm.Begin("load")
	time.Sleep(time.Millisecond)
	tm.End(load, "3 packages")
	rw := tm.Begin("rewrite")
	tm.End(rw, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "load" || r.Phases[0].Note != "3 packages" {
		t.Fatalf("report = %+v", r)
	}
	if r.Phases[0].DurationMS < 1 || r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("durations = %+v", r)
	}
	if tm.Duration("load") < time.Millisecond || tm.Duration("missing") != 0 {
		t.Fatalf("Duration lookups wrong")
	}

	s := tm.Summary()
	for _, want := range []string{"timings:\n", "load", "// 3 packages", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestNilTimerReport(t *testing.T) {
	var tm *Timer
	if r := tm.Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("nil timer report = %+v", r)
	}
}
