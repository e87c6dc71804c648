package observ

import (
	"strings"
	"testing"
)

func TestStopwatchRecordsSpansInOrder(t *testing.T) {
	sw := NewStopwatch()
	done := sw.Start(PhaseLoad)
	done("3 funcs")
	done = sw.Start(PhaseLower)
	done("")

	r := sw.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(r.Phases))
	}
	if r.Phases[0].Phase != "load" || r.Phases[1].Phase != "lower" {
		t.Errorf("phase order = %q, %q", r.Phases[0].Phase, r.Phases[1].Phase)
	}
	if r.Phases[0].Note != "3 funcs" {
		t.Errorf("note = %q", r.Phases[0].Note)
	}
	for _, p := range r.Phases {
		if p.DurationMS < 0 {
			t.Errorf("phase %q has negative duration", p.Phase)
		}
	}
}

func TestStopwatchEmptyReport(t *testing.T) {
	r := NewStopwatch().Report()
	if len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Errorf("empty stopwatch produced %+v", r)
	}
}

func TestPhaseNamesAreStable(t *testing.T) {
	for phase, want := range map[Phase]string{
		PhaseLoad:     "load",
		PhaseLower:    "lower",
		PhaseAssemble: "assemble",
	} {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(phase), got, want)
		}
	}
}

func TestReportStringListsEveryPhase(t *testing.T) {
	sw := NewStopwatch()
	sw.Start(PhaseAssemble)("")
	s := sw.Report().String()
	if !strings.Contains(s, "assemble") {
		t.Errorf("report missing phase name:\n%s", s)
	}
	if !strings.Contains(s, "total") {
		t.Errorf("report missing total line:\n%s", s)
	}
}
