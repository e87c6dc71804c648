// Package mono schedules on-demand specialization of generic structs,
// enums and impl methods. A global generated set guarantees at-most-once
// emission per distinct (base, type-args) key; the job queue is drained to
// a fixed point on the single codegen thread, and re-entrant discovery of
// new instantiations while draining is safe because the generated set is
// the sole source of truth for "already scheduled".
package mono

import (
	"tml/internal/types"
)

// JobKind identifies the kind of entity being specialized.
type JobKind uint8

const (
	// JobStruct specializes a generic struct layout.
	JobStruct JobKind = iota
	// JobEnum specializes a generic tagged-union layout.
	JobEnum
	// JobMethod specializes one impl method for a concrete receiver.
	JobMethod
	// JobFunc specializes a generic free function.
	JobFunc
)

func (k JobKind) String() string {
	switch k {
	case JobStruct:
		return "struct"
	case JobEnum:
		return "enum"
	case JobMethod:
		return "method"
	case JobFunc:
		return "fn"
	}
	return "job"
}

// Job is one scheduled specialization. Subs maps generic parameter names
// (and associated-type keys) to concrete TypeIDs.
type Job struct {
	Kind    JobKind
	Base    string
	Method  string // JobMethod only
	Args    []types.TypeID
	Subs    map[string]types.TypeID
	Mangled string
}

// Engine owns the generated set and the pending queue.
type Engine struct {
	types     *types.Interner
	generated map[string]bool
	queue     []Job
}

func NewEngine(in *types.Interner) *Engine {
	return &Engine{
		types:     in,
		generated: make(map[string]bool),
	}
}

func (e *Engine) key(kind JobKind, mangled, method string) string {
	k := kind.String() + ":" + mangled
	if method != "" {
		k += "." + method
	}
	return k
}

// Request schedules a specialization job unless the same key was already
// generated. Returns true when a new job was enqueued; repeated requests
// for the same key are no-ops after the first.
func (e *Engine) Request(kind JobKind, base, method string, args []types.TypeID, subs map[string]types.TypeID) bool {
	mangled := e.types.MangleName(base, args)
	k := e.key(kind, mangled, method)
	if e.generated[k] {
		return false
	}
	e.generated[k] = true
	e.queue = append(e.queue, Job{
		Kind:    kind,
		Base:    base,
		Method:  method,
		Args:    args,
		Subs:    subs,
		Mangled: mangled,
	})
	return true
}

// Generated reports whether a key was already scheduled or emitted.
func (e *Engine) Generated(kind JobKind, mangled, method string) bool {
	return e.generated[e.key(kind, mangled, method)]
}

// MarkGenerated records an externally produced definition so later
// requests become no-ops (used for non-generic declarations emitted up
// front).
func (e *Engine) MarkGenerated(kind JobKind, mangled, method string) {
	e.generated[e.key(kind, mangled, method)] = true
}

// Pending reports the number of queued jobs.
func (e *Engine) Pending() int {
	return len(e.queue)
}

// Drain pops jobs FIFO until the queue reaches a fixed point. emit may
// Request further instantiations; they are processed in the same drain.
func (e *Engine) Drain(emit func(Job) error) error {
	for len(e.queue) > 0 {
		job := e.queue[0]
		e.queue = e.queue[1:]
		if err := emit(job); err != nil {
			return err
		}
	}
	return nil
}
