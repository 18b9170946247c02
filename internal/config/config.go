// Package config defines the run parameters shared by every rank and their
// validation. Parameters come from an optional YAML file overlaid by flags;
// the merged set is parsed and validated on rank 0 only and then broadcast,
// so all ranks operate on an identical, already-checked configuration.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// Params are the startup parameters of a run. They are immutable once
// broadcast and identical on every rank.
type Params struct {
	// Rows and Cols are the global field extents (M and N).
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`

	// MaxIteration is the last iteration index; the run executes
	// MaxIteration+1 steps, numbered 0..MaxIteration.
	MaxIteration int `yaml:"max_iteration"`

	// SnapshotFrequency is the checkpoint cadence: a snapshot is emitted
	// at every iteration divisible by it, including iteration 0.
	SnapshotFrequency int `yaml:"snapshot_frequency"`

	// Dt is the explicit time step. No runtime stability check is made;
	// the forward-Euler scheme diverges when 4*Dt*diffusivity >= 1.
	Dt float64 `yaml:"dt"`

	// OutputDir is where snapshot artifacts and the manifest are written.
	OutputDir string `yaml:"output_dir"`
}

// Default returns the parameter set used when neither file nor flags
// override a value. Dt matches the reference initial-value problem.
func Default() Params {
	return Params{
		Rows:              256,
		Cols:              256,
		MaxIteration:      1000,
		SnapshotFrequency: 100,
		Dt:                0.1,
		OutputDir:         "data",
	}
}

// Load reads a YAML parameter file over the defaults. Unknown keys are
// rejected so a typoed parameter fails loudly instead of running with a
// silently defaulted value.
func Load(path string) (Params, error) {
	p := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Params{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the parameter set against a rank count, before any field
// allocation. The decomposition rules live here so a bad configuration is a
// reported error on rank 0, never a truncated domain.
func (p Params) Validate(ranks int) error {
	if p.Rows < 1 || p.Cols < 1 {
		return fmt.Errorf("grid extents must be positive, got %dx%d", p.Rows, p.Cols)
	}
	if p.MaxIteration < 0 {
		return fmt.Errorf("max_iteration must be non-negative, got %d", p.MaxIteration)
	}
	if p.SnapshotFrequency < 1 {
		return fmt.Errorf("snapshot_frequency must be positive, got %d", p.SnapshotFrequency)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", p.Dt)
	}
	if p.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	topo, err := grid.NewTopology(ranks)
	if err != nil {
		return err
	}
	if p.Rows%topo.PRows != 0 {
		return fmt.Errorf("global rows %d not divisible by topology rows %d (%d ranks)", p.Rows, topo.PRows, ranks)
	}
	if p.Cols%topo.PCols != 0 {
		return fmt.Errorf("global cols %d not divisible by topology cols %d (%d ranks)", p.Cols, topo.PCols, ranks)
	}
	// The reflective boundary mirrors the interior cell two steps in, so a
	// subgrid thinner than two cells cannot express it.
	if p.Rows/topo.PRows < 2 {
		return fmt.Errorf("local rows %d too small for mirror boundary (need at least 2)", p.Rows/topo.PRows)
	}
	if p.Cols/topo.PCols < 2 {
		return fmt.Errorf("local cols %d too small for mirror boundary (need at least 2)", p.Cols/topo.PCols)
	}
	return nil
}
