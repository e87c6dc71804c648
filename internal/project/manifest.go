package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file name that marks a project root.
const ManifestName = "tml.toml"

// Package is the [package] section of tml.toml.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build is the [build] section of tml.toml. All fields are optional.
type Build struct {
	OutDir   string `toml:"out_dir"`
	CacheDir string `toml:"cache_dir"`
	Jobs     int    `toml:"jobs"`
}

// UnitDecl is one [[units]] entry: a named compilation input.
type UnitDecl struct {
	Name  string   `toml:"name"`
	Input string   `toml:"input"`
	Deps  []string `toml:"deps"`
}

// Manifest is a parsed tml.toml.
type Manifest struct {
	Package Package    `toml:"package"`
	Build   Build      `toml:"build"`
	Units   []UnitDecl `toml:"units"`

	// Dir is the directory the manifest was loaded from.
	Dir string `toml:"-"`
}

var (
	// ErrPackageNameMissing indicates that [package].name is missing.
	ErrPackageNameMissing = errors.New("missing [package].name")
	// ErrUnitNameMissing indicates a [[units]] entry without a name.
	ErrUnitNameMissing = errors.New("missing unit name")
	// ErrUnitInputMissing indicates a [[units]] entry without an input file.
	ErrUnitInputMissing = errors.New("missing unit input")
)

// LoadManifest parses and validates a tml.toml file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	m.Dir = filepath.Dir(abs)
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %q: %w", path, err)
	}
	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Package.Name == "" {
		return ErrPackageNameMissing
	}
	seen := make(map[string]bool, len(m.Units))
	for _, u := range m.Units {
		if u.Name == "" {
			return ErrUnitNameMissing
		}
		if u.Input == "" {
			return fmt.Errorf("unit %q: %w", u.Name, ErrUnitInputMissing)
		}
		if seen[u.Name] {
			return fmt.Errorf("duplicate unit %q", u.Name)
		}
		seen[u.Name] = true
	}
	for _, u := range m.Units {
		for _, dep := range u.Deps {
			if !seen[dep] {
				return fmt.Errorf("unit %q depends on unknown unit %q", u.Name, dep)
			}
		}
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	if m.Build.OutDir == "" {
		m.Build.OutDir = "build"
	}
	if m.Build.CacheDir == "" {
		m.Build.CacheDir = filepath.Join(m.Build.OutDir, "cache")
	}
}

// Unit returns the declared unit with the given name, if any.
func (m *Manifest) Unit(name string) (UnitDecl, bool) {
	for _, u := range m.Units {
		if u.Name == name {
			return u, true
		}
	}
	return UnitDecl{}, false
}

// InputPath resolves a unit's input file relative to the manifest directory.
func (m *Manifest) InputPath(u UnitDecl) string {
	if filepath.IsAbs(u.Input) {
		return u.Input
	}
	return filepath.Join(m.Dir, u.Input)
}

// FindManifest walks up from startDir to locate tml.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindProjectRoot returns the directory containing tml.toml, if any.
func FindProjectRoot(startDir string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return "", ok, err
	}
	return filepath.Dir(manifestPath), true, nil
}
