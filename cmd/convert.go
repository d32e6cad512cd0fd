package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/utils"
	"github.com/spf13/cobra"
)

var convertOpts Options

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a pattern file to another format",
	Long:  "Decodes the input and re-encodes it in the target format. The output is named after the input with the target format as an upper-case extension (design.json -> design.CSV).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		_, err := runConvert(cmd.Context(), convertOpts)
		return err
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOpts.InputPath, "input", "i", "", "Path to pattern file")
	convertCmd.Flags().StringVarP(&convertOpts.Format, "format", "f", "", "Target format (see 'needle formats')")
	convertCmd.Flags().StringVarP(&convertOpts.OutputPath, "output", "o", ".", "Directory for the converted file")
	convertCmd.Flags().BoolVar(&convertOpts.Force, "force", false, "Overwrite an existing output file without asking")

	convertCmd.MarkFlagRequired("input")
	convertCmd.MarkFlagRequired("format")
	rootCmd.AddCommand(convertCmd)
}

// confirmOverwrite asks before replacing an existing file.
var confirmOverwrite = func(path string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("%s already exists. Overwrite?", path),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// runConvert writes the converted file and returns its path.
func runConvert(ctx context.Context, opts Options) (string, error) {
	if err := validateConvertFlags(&opts); err != nil {
		return "", report("Invalid convert options", err)
	}

	data, err := utils.ReadInput(opts.InputPath, Cfg.Limits.MaxInputBytes)
	if err != nil {
		return "", report("Unable to read input file", inputError{err})
	}

	out, err := Registry.Convert(filepath.Base(opts.InputPath), data, opts.Format)
	if err != nil {
		return "", report(describeConvertFailure(err), err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outPath := filepath.Join(opts.OutputPath, utils.OutputFilename(opts.InputPath, opts.Format))
	if _, err := os.Stat(outPath); err == nil && !opts.Force {
		ok, err := confirmOverwrite(outPath)
		if err != nil {
			return "", report("Failed to confirm overwrite", err)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "⏭️  Skipped %s\n", outPath)
			return "", nil
		}
	}

	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return "", report("Failed to write file", err)
	}
	fmt.Fprintf(os.Stderr, "✅ Converted %s -> %s (%d bytes)\n", filepath.Base(opts.InputPath), outPath, len(out))
	return outPath, nil
}

// validateConvertFlags ensures all CLI arguments are valid before decoding.
func validateConvertFlags(opts *Options) error {
	if err := utils.ValidateInput(opts.InputPath); err != nil {
		return inputError{err}
	}
	opts.Format = strings.TrimSpace(opts.Format)
	if opts.Format == "" {
		return inputError{errors.New("no target format specified")}
	}
	if !Registry.Supported(opts.Format) {
		return &codec.EncodeError{Format: opts.Format, Reason: "unsupported output format", Unsupported: true}
	}
	info, err := os.Stat(opts.OutputPath)
	if err != nil {
		return inputError{fmt.Errorf("output directory: %w", err)}
	}
	if !info.IsDir() {
		return inputError{fmt.Errorf("output path %s is not a directory", opts.OutputPath)}
	}
	return nil
}

// describeConvertFailure picks the headline for a failed conversion.
func describeConvertFailure(err error) string {
	var ee *codec.EncodeError
	if errors.As(err, &ee) {
		return "Failed to write file"
	}
	return describeDecodeFailure(err)
}
