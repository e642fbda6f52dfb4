package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v2"
)

// DefaultBuildFile is picked up from the working directory when no explicit
// build file is given.
const DefaultBuildFile = "bpg.yaml"

// Build is the immutable configuration for one patch build. It is threaded
// explicitly through the pipeline; there is no ambient global state.
type Build struct {
	OldDir string
	NewDir string
	Output string

	Product     string
	FromVersion string
	ToVersion   string
	DeleteExtra bool

	// StubPath locates the prebuilt applier executable the payload is
	// embedded into.
	StubPath string
}

// File is the optional YAML build file mirroring the flag surface.
type File struct {
	Product     string `yaml:"product"`
	FromVersion string `yaml:"from_version"`
	ToVersion   string `yaml:"to_version"`
	DeleteExtra bool   `yaml:"delete_extra"`
	Stub        string `yaml:"stub"`
}

// LoadFile reads and parses a YAML build file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build file %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse build file %q: %w", path, err)
	}
	return &f, nil
}

// ApplyTo fills empty Build fields from the file; explicit values win.
func (f *File) ApplyTo(cfg *Build) {
	if cfg.Product == "" {
		cfg.Product = f.Product
	}
	if cfg.FromVersion == "" {
		cfg.FromVersion = f.FromVersion
	}
	if cfg.ToVersion == "" {
		cfg.ToVersion = f.ToVersion
	}
	if cfg.StubPath == "" {
		cfg.StubPath = f.Stub
	}
	if f.DeleteExtra {
		cfg.DeleteExtra = true
	}
}

// Validate checks the configuration before a build starts.
func (c *Build) Validate() error {
	if c.OldDir == "" || c.NewDir == "" {
		return fmt.Errorf("old and new directories are required")
	}
	if c.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Product == "" {
		return fmt.Errorf("product name is required")
	}
	if err := checkVersion("from-version", c.FromVersion); err != nil {
		return err
	}
	if err := checkVersion("to-version", c.ToVersion); err != nil {
		return err
	}
	return nil
}

func checkVersion(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !semver.IsValid("v" + strings.TrimPrefix(v, "v")) {
		return fmt.Errorf("%s %q is not a semantic version", field, v)
	}
	return nil
}
