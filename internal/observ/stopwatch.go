package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase names one stage of the per-unit pipeline.
type Phase int

const (
	PhaseLoad     Phase = iota // decode the input and build the signature env
	PhaseLower                 // emit function bodies and drain specializations
	PhaseAssemble              // stitch the final module text
)

func (p Phase) String() string {
	switch p {
	case PhaseLoad:
		return "load"
	case PhaseLower:
		return "lower"
	case PhaseAssemble:
		return "assemble"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type span struct {
	phase Phase
	start time.Time
	dur   time.Duration
	note  string
}

// Stopwatch measures the pipeline phases of one unit. Not safe for
// concurrent use; each unit carries its own.
type Stopwatch struct {
	spans []span
}

func NewStopwatch() *Stopwatch { return &Stopwatch{spans: make([]span, 0, 4)} }

// Start opens a span for the phase and returns the function that closes
// it. The note lands on the span, "" keeps it bare.
func (s *Stopwatch) Start(p Phase) func(note string) {
	idx := len(s.spans)
	s.spans = append(s.spans, span{phase: p, start: time.Now()})
	return func(note string) {
		sp := &s.spans[idx]
		sp.dur = time.Since(sp.start)
		sp.note = note
	}
}

// PhaseReport is the serializable form of one closed span.
type PhaseReport struct {
	Phase      string  `json:"phase"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the measured phases with a total in milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func (s *Stopwatch) Report() Report {
	if len(s.spans) == 0 {
		return Report{}
	}
	r := Report{Phases: make([]PhaseReport, len(s.spans))}
	var total time.Duration
	for i, sp := range s.spans {
		total += sp.dur
		r.Phases[i] = PhaseReport{
			Phase:      sp.phase.String(),
			DurationMS: millis(sp.dur),
			Note:       sp.note,
		}
	}
	r.TotalMS = millis(total)
	return r
}

// String renders the report for terminal output, one line per phase and
// a closing total.
func (r Report) String() string {
	var b strings.Builder
	for _, p := range r.Phases {
		fmt.Fprintf(&b, "  %-10s %7.2f ms", p.Phase, p.DurationMS)
		if p.Note != "" {
			fmt.Fprintf(&b, "  (%s)", p.Note)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %-10s %7.2f ms\n", "total", r.TotalMS)
	return b.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
