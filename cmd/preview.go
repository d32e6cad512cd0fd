package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/preview"
	"github.com/andresmejia3/needle/internal/render"
	"github.com/andresmejia3/needle/internal/utils"
	"github.com/spf13/cobra"
)

var previewOpts Options

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the vector preview (color blocks + stats) of a pattern as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runPreview(cmd.Context(), previewOpts, cmd.OutOrStdout())
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewOpts.InputPath, "input", "i", "", "Path to pattern file")
	previewCmd.Flags().StringVarP(&previewOpts.OutputPath, "output", "o", "", "Write the JSON payload to this file instead of stdout")
	previewCmd.Flags().BoolVarP(&previewOpts.Thumbnail, "thumbnail", "t", false, "Embed a PNG thumbnail as a data URI")
	previewCmd.Flags().StringVar(&previewOpts.ThumbnailOut, "thumbnail-out", "", "Also write the PNG thumbnail to this path")
	previewCmd.Flags().BoolVarP(&previewOpts.Pretty, "pretty", "p", false, "Indent the JSON output")

	previewCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(previewCmd)
}

// runPreview decodes the input, assembles the preview, and writes it to w (or --output).
func runPreview(ctx context.Context, opts Options, w io.Writer) error {
	if err := validatePreviewFlags(&opts); err != nil {
		return report("Invalid preview options", err)
	}

	data, err := utils.ReadInput(opts.InputPath, Cfg.Limits.MaxInputBytes)
	if err != nil {
		return report("Unable to read input file", inputError{err})
	}

	resp, err := preview.Generate(Registry, filepath.Base(opts.InputPath), data, preview.Options{
		Thumbnail: opts.Thumbnail,
		Render:    Cfg.RenderOptions(),
	})
	if err != nil {
		return report(describeDecodeFailure(err), err)
	}

	if opts.ThumbnailOut != "" {
		if err := writeThumbnail(resp, opts.ThumbnailOut); err != nil {
			return report("Failed to write thumbnail", err)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if opts.OutputPath == "" {
		return resp.Write(w, opts.Pretty)
	}

	var buf bytes.Buffer
	if err := resp.Write(&buf, opts.Pretty); err != nil {
		return report("Failed to encode preview", err)
	}
	if err := os.WriteFile(opts.OutputPath, buf.Bytes(), 0644); err != nil {
		return report("Failed to write preview", err)
	}
	fmt.Fprintf(os.Stderr, "✅ Preview written to %s (%d blocks, %d stitches)\n", opts.OutputPath, len(resp.Pattern), resp.Stats.Stitches)
	return nil
}

// writeThumbnail re-renders the assembled blocks to a PNG file.
func writeThumbnail(resp *preview.Response, path string) error {
	img, err := render.PNG(resp.Pattern, resp.Bounds, Cfg.RenderOptions())
	if err != nil {
		return err
	}
	return os.WriteFile(path, img, 0644)
}

// validatePreviewFlags ensures all CLI arguments are valid before decoding.
func validatePreviewFlags(opts *Options) error {
	if err := utils.ValidateInput(opts.InputPath); err != nil {
		return inputError{err}
	}
	if opts.ThumbnailOut != "" && !strings.EqualFold(filepath.Ext(opts.ThumbnailOut), ".png") {
		return inputError{fmt.Errorf("thumbnail output must be a .png file, got %s", opts.ThumbnailOut)}
	}
	if opts.OutputPath != "" {
		inAbs, _ := filepath.Abs(opts.InputPath)
		outAbs, _ := filepath.Abs(opts.OutputPath)
		if inAbs == outAbs {
			return inputError{errors.New("input and output paths must be different")}
		}
	}
	return nil
}

// describeDecodeFailure picks the headline for a failed decode.
func describeDecodeFailure(err error) string {
	var de *codec.DecodeError
	switch {
	case errors.Is(err, codec.ErrEmptyPattern):
		return "Could not parse embroidery file"
	case errors.As(err, &de):
		return "Failed to read file"
	default:
		return "Server error"
	}
}

// renderDataURI draws the assembled blocks and wraps the PNG in a data URI.
func renderDataURI(resp *preview.Response) (string, error) {
	img, err := render.PNG(resp.Pattern, resp.Bounds, Cfg.RenderOptions())
	if err != nil {
		return "", err
	}
	return render.DataURI(img), nil
}
