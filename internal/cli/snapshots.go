package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Claxl/Parallel-Computing2023/internal/snapshot"
	"github.com/Claxl/Parallel-Computing2023/internal/solver"
)

// SnapshotsOptions holds flags for the snapshots command.
type SnapshotsOptions struct {
	*RootOptions
	OutputDir string
}

// NewSnapshotsCommand creates the snapshots command.
func NewSnapshotsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List checkpoint artifacts recorded in a run manifest",
		Long: `List the checkpoint artifacts recorded in an output directory's manifest.

Only sealed artifacts appear: the manifest row is written after the whole
rank group has passed the post-write barrier, so every listed file is a
complete global snapshot.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutputDir, "out", "data", "output directory holding the manifest")

	return cmd
}

func runSnapshots(opts *SnapshotsOptions, cmd *cobra.Command) error {
	path := filepath.Join(opts.OutputDir, solver.ManifestName)
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("no manifest at %s", path), err)
	}
	m, err := snapshot.OpenManifest(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open manifest", err)
	}
	defer m.Close()

	entries, err := m.Snapshots(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "list snapshots", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(entries)
	}

	p := message.NewPrinter(language.English)
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no snapshots recorded")
		return nil
	}
	for _, e := range entries {
		p.Fprintf(out, "%s  iter %d  %d bytes  %s  run %s\n",
			e.File, e.Iteration, e.Bytes, e.SHA256[:12], e.RunID)
	}
	p.Fprintf(out, "%d snapshot(s)\n", len(entries))
	return nil
}
