package codegen

import (
	"fmt"
	"sort"

	"tml/internal/ast"
	"tml/internal/mono"
	"tml/internal/types"
)

// RegisterFuncBody records a function body for later emission. Concrete
// functions emit immediately in EmitAll order; generic ones wait for a
// call site to schedule a specialization.
func (g *Generator) RegisterFuncBody(fn *ast.Func) {
	if g.funcBodies == nil {
		g.funcBodies = make(map[string]*ast.Func)
	}
	g.funcBodies[fn.Name] = fn
}

// RegisterMethodBody records an impl method body against its receiver's
// base name. The body's first parameter must be the receiver pointer.
func (g *Generator) RegisterMethodBody(base string, fn *ast.Func) {
	if g.methodBodies == nil {
		g.methodBodies = make(map[string]map[string]*ast.Func)
	}
	if g.methodBodies[base] == nil {
		g.methodBodies[base] = make(map[string]*ast.Func)
	}
	g.methodBodies[base][fn.Name] = fn
}

// EmitAll lowers every registered concrete function, then drains the
// specialization queue to a fixed point. Specialized bodies may discover
// further instantiations; the queue handles re-entry.
func (g *Generator) EmitAll() error {
	names := make([]string, 0, len(g.funcBodies))
	for name := range g.funcBodies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn := g.funcBodies[name]
		if len(fn.Generics) > 0 {
			continue
		}
		if err := g.EmitFunc(fn); err != nil {
			return err
		}
	}
	for base, methods := range g.methodBodies {
		if !g.baseIsGeneric(base) {
			mnames := make([]string, 0, len(methods))
			for name := range methods {
				mnames = append(mnames, name)
			}
			sort.Strings(mnames)
			for _, name := range mnames {
				fn := methods[name]
				if err := g.emitFuncWithSubs(fn, "tml_"+base+"_"+fn.Name, base, nil); err != nil {
					return err
				}
			}
		}
	}
	return g.DrainMono()
}

func (g *Generator) baseIsGeneric(base string) bool {
	if s, ok := g.Env.LookupStruct(base); ok {
		return len(s.Generics) > 0
	}
	if en, ok := g.Env.LookupEnum(base); ok {
		return len(en.Generics) > 0
	}
	if c, ok := g.Env.LookupClass(base); ok {
		return len(c.Generics) > 0
	}
	return false
}

// DrainMono processes pending specialization jobs until none remain.
func (g *Generator) DrainMono() error {
	return g.Mono.Drain(func(job mono.Job) error {
		switch job.Kind {
		case mono.JobStruct, mono.JobEnum:
			id := g.Types.Intern(types.MakeNamed(job.Base, "", job.Args))
			t, ok := g.Types.Lookup(id)
			if !ok {
				return fmt.Errorf("codegen: cannot intern %s", job.Mangled)
			}
			g.ensureNamedDef(id, t)
			return nil
		case mono.JobFunc:
			fn, ok := g.funcBodies[job.Base]
			if !ok {
				return fmt.Errorf("codegen: no body registered for fn %s", job.Base)
			}
			return g.emitFuncWithSubs(fn, "tml_"+job.Mangled, "", job.Subs)
		case mono.JobMethod:
			methods, ok := g.methodBodies[job.Base]
			if !ok {
				return fmt.Errorf("codegen: no impl bodies registered for %s", job.Base)
			}
			fn, ok := methods[job.Method]
			if !ok {
				return fmt.Errorf("codegen: no body registered for %s.%s", job.Base, job.Method)
			}
			return g.emitFuncWithSubs(fn, "tml_"+job.Mangled+"_"+job.Method, job.Mangled, job.Subs)
		}
		return fmt.Errorf("codegen: unknown job kind %d", job.Kind)
	})
}
