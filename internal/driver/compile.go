package driver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tml/internal/diag"
	"tml/internal/observ"
	"tml/internal/project"
)

// Unit is one independently compilable input. Digest identifies the input
// content (dependencies folded in); a zero digest disables caching for the
// unit.
type Unit struct {
	Name   string
	Digest project.Digest
	Input  *Input
}

// Result is the outcome of compiling one unit.
type Result struct {
	Name      string
	IR        string
	HasErrors bool
	Bag       *diag.Bag // nil for cache hits
	FromCache bool
	Timing    observ.Report
}

// Compiler compiles units, reusing cached artifacts when a digest matches.
type Compiler struct {
	Cache    *Cache // may be nil
	MaxDiags int    // diagnostics cap per unit, 0 means the bag default
	Jobs     int    // parallel unit limit for CompileAll, 0 means unbounded
}

// CompileUnit compiles a single unit to module text. Diagnostics land in
// the result's bag; only internal failures return an error. Units that
// compiled clean are stored in the cache.
func (c *Compiler) CompileUnit(ctx context.Context, u Unit) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var zero project.Digest
	if c.Cache != nil && u.Digest != zero {
		var payload CachePayload
		if ok, err := c.Cache.Get(u.Digest, &payload); err != nil {
			return nil, fmt.Errorf("unit %q: cache read: %w", u.Name, err)
		} else if ok && !payload.HasErrors {
			return &Result{Name: u.Name, IR: payload.IR, FromCache: true}, nil
		}
	}

	sw := observ.NewStopwatch()

	done := sw.Start(observ.PhaseLoad)
	gen, bag, err := loadInput(u.Input, c.MaxDiags)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	done(fmt.Sprintf("%d funcs", len(u.Input.Bodies)+len(u.Input.Methods)))

	done = sw.Start(observ.PhaseLower)
	if err := gen.EmitAll(); err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	done("")

	done = sw.Start(observ.PhaseAssemble)
	ir := gen.Module()
	done("")

	res := &Result{
		Name:      u.Name,
		IR:        ir,
		HasErrors: bag.HasErrors(),
		Bag:       bag,
		Timing:    sw.Report(),
	}
	if c.Cache != nil && u.Digest != zero && !res.HasErrors {
		// A failed cache write costs a recompile next time, nothing more.
		_ = c.Cache.Put(u.Digest, &CachePayload{Name: u.Name, IR: ir})
	}
	return res, nil
}

// CompileAll compiles units in parallel, at most Jobs at a time. Results
// keep the input order. The first internal failure cancels the remaining
// units.
func (c *Compiler) CompileAll(ctx context.Context, units []Unit) ([]*Result, error) {
	results := make([]*Result, len(units))
	g, ctx := errgroup.WithContext(ctx)
	if c.Jobs > 0 {
		g.SetLimit(c.Jobs)
	}
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			res, err := c.CompileUnit(ctx, u)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
