package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Claxl/Parallel-Computing2023/internal/config"
	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	Error        string `json:"error,omitempty"`
	Rows         int    `json:"rows"`
	Cols         int    `json:"cols"`
	Ranks        int    `json:"ranks"`
	TopologyRows int    `json:"topology_rows"`
	TopologyCols int    `json:"topology_cols"`
	LocalRows    int    `json:"local_rows,omitempty"`
	LocalCols    int    `json:"local_cols,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration and topology without running",
		Long: `Check a configuration against a rank count without running.

Reports the 2D topology factorization and the per-rank subgrid extents,
or the configuration error a run would abort with.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	def := config.Default()
	cmd.Flags().IntVar(&opts.Ranks, "ranks", 1, "SPMD rank count")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML parameter file")
	cmd.Flags().IntVar(&opts.Rows, "rows", def.Rows, "global row count (M)")
	cmd.Flags().IntVar(&opts.Cols, "cols", def.Cols, "global column count (N)")
	cmd.Flags().IntVar(&opts.MaxIteration, "max-iteration", def.MaxIteration, "last iteration index")
	cmd.Flags().IntVar(&opts.SnapshotFrequency, "snapshot-frequency", def.SnapshotFrequency, "checkpoint cadence in iterations")
	cmd.Flags().Float64Var(&opts.Dt, "dt", def.Dt, "explicit time step")
	cmd.Flags().StringVar(&opts.OutputDir, "out", def.OutputDir, "output directory for artifacts and manifest")

	return cmd
}

func runValidate(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	params, err := loadParams(opts, cmd.Flags())()
	if err != nil {
		if ferr := formatter.Error("CONFIG_INVALID", err.Error(), nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitCommandError, "configuration unreadable")
	}

	pr, pc := grid.Dims(opts.Ranks)
	result := ValidationResult{
		Rows:         params.Rows,
		Cols:         params.Cols,
		Ranks:        opts.Ranks,
		TopologyRows: pr,
		TopologyCols: pc,
	}
	if err := params.Validate(opts.Ranks); err != nil {
		result.Error = err.Error()
		if opts.Format == "json" {
			if ferr := formatter.Success(result); ferr != nil {
				return ferr
			}
		} else if ferr := formatter.Error("CONFIG_INVALID", err.Error(), nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "configuration invalid")
	}

	result.Valid = true
	result.LocalRows = params.Rows / pr
	result.LocalCols = params.Cols / pc
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "configuration valid\n")
	fmt.Fprintf(out, "  grid:     %d x %d\n", params.Rows, params.Cols)
	fmt.Fprintf(out, "  topology: %d x %d over %d ranks\n", pr, pc, opts.Ranks)
	fmt.Fprintf(out, "  subgrid:  %d x %d per rank\n", result.LocalRows, result.LocalCols)
	return nil
}
