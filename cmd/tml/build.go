package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tml/internal/diag"
	"tml/internal/driver"
	"tml/internal/project"
)

var (
	buildJobs    int
	buildNoCache bool
)

func init() {
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "parallel unit limit (default: manifest setting)")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "recompile every unit, ignoring cached artifacts")
}

var buildCmd = &cobra.Command{
	Use:   "build [flags] [path]",
	Short: "Build a tml project",
	Long:  "Build compiles every unit declared in tml.toml, in parallel and with artifact caching.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func buildExecution(cmd *cobra.Command, args []string) error {
	start := "."
	if len(args) == 1 {
		start = args[0]
	}
	manifestPath, ok, err := project.FindManifest(start)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no %s found from %q upward", project.ManifestName, start)
	}
	manifest, err := project.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	var cache *driver.Cache
	if !buildNoCache {
		cache, err = driver.OpenCache(resolveDir(manifest.Dir, manifest.Build.CacheDir))
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
	}

	units, err := collectUnits(manifest)
	if err != nil {
		return err
	}

	jobs := buildJobs
	if jobs == 0 {
		jobs = manifest.Build.Jobs
	}
	maxDiags, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	compiler := driver.Compiler{Cache: cache, MaxDiags: maxDiags, Jobs: jobs}
	results, err := compiler.CompileAll(context.Background(), units)
	if err != nil {
		return err
	}

	outDir := resolveDir(manifest.Dir, manifest.Build.OutDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		diag.Print(cmd.ErrOrStderr(), nil, res.Bag)
		if showTimings(cmd) && !res.FromCache {
			renderTimings(cmd.ErrOrStderr(), res.Name, res.Timing)
		}
		if res.HasErrors {
			failed++
			continue
		}
		out := filepath.Join(outDir, res.Name+".ll")
		if err := os.WriteFile(out, []byte(res.IR), 0o644); err != nil {
			return err
		}
		status := "compiled"
		if res.FromCache {
			status = "cached"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s -> %s\n", status, res.Name, out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units had errors", failed, len(results))
	}
	return nil
}

// collectUnits reads every declared input and assigns each unit the digest
// of its content combined with its dependencies' digests, so any upstream
// change invalidates the downstream artifacts too.
func collectUnits(manifest *project.Manifest) ([]driver.Unit, error) {
	type loaded struct {
		decl    project.UnitDecl
		input   *driver.Input
		content project.Digest
	}
	order := make([]loaded, len(manifest.Units))
	for i, decl := range manifest.Units {
		raw, err := os.ReadFile(manifest.InputPath(decl))
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", decl.Name, err)
		}
		input, err := driver.ReadInput(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", decl.Name, err)
		}
		order[i] = loaded{decl: decl, input: input, content: project.HashBytes(raw)}
	}

	digests := make(map[string]project.Digest, len(order))
	for resolved := 0; resolved < len(order); {
		progress := false
		for _, l := range order {
			if _, done := digests[l.decl.Name]; done {
				continue
			}
			deps := make([]project.Digest, 0, len(l.decl.Deps))
			ready := true
			for _, dep := range l.decl.Deps {
				d, ok := digests[dep]
				if !ok {
					ready = false
					break
				}
				deps = append(deps, d)
			}
			if !ready {
				continue
			}
			digests[l.decl.Name] = project.Combine(l.content, deps...)
			resolved++
			progress = true
		}
		if !progress {
			return nil, fmt.Errorf("dependency cycle among units in %s", project.ManifestName)
		}
	}

	units := make([]driver.Unit, len(order))
	for i, l := range order {
		units[i] = driver.Unit{Name: l.decl.Name, Digest: digests[l.decl.Name], Input: l.input}
	}
	return units, nil
}

func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}
