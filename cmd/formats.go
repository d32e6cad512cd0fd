package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the pattern formats needle can read and write",
	Run: func(cmd *cobra.Command, args []string) {
		runFormats(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FORMAT\tEXTENSIONS\tREAD\tWRITE")
	fmt.Fprintln(w, "------\t----------\t----\t-----")

	for _, c := range Registry.Formats() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name(), strings.Join(c.Extensions(), ", "), yesNo(c.CanDecode()), yesNo(c.CanEncode()))
	}
	w.Flush()
	fmt.Fprintln(out, "\nAppend .zst to any readable format (e.g. json.zst) for zstd-compressed files.")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
