package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/metrics"
	"github.com/andresmejia3/needle/internal/utils"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <pattern_path>...",
	Short: "Show stitch count, size, and colors of one or more patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runStats(args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(paths []string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTITCHES\tWIDTH (mm)\tHEIGHT (mm)\tCOLORS\tCHANGES")
	fmt.Fprintln(w, "----\t--------\t----------\t-----------\t------\t-------")

	var firstErr error
	failed := 0
	for _, path := range paths {
		name := filepath.Base(path)
		data, err := utils.ReadInput(path, Cfg.Limits.MaxInputBytes)
		if err != nil {
			err = inputError{err}
		} else {
			p, derr := Registry.Decode(name, data)
			switch {
			case derr != nil:
				err = derr
			case p == nil:
				err = codec.ErrEmptyPattern
			default:
				m := metrics.Compute(p)
				fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%d\t%d\n", name, m.Stitches, m.Width, m.Height, m.Colors, m.Changes)
				continue
			}
		}

		failed++
		if firstErr == nil {
			firstErr = err
		}
		fmt.Fprintf(w, "%s\t❌ %v\t\t\t\t\n", name, err)
	}
	w.Flush()

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read: %w", failed, len(paths), firstErr)
	}
	return nil
}
