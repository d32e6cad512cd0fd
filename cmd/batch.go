package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/metrics"
	"github.com/andresmejia3/needle/internal/preview"
	"github.com/andresmejia3/needle/internal/render"
	"github.com/andresmejia3/needle/internal/types"
	"github.com/andresmejia3/needle/internal/utils"
	"github.com/andresmejia3/needle/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var batchOpts Options

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Convert or preview every pattern in a directory with parallel engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runBatch(cmd.Context(), batchOpts, cmd.OutOrStdout())
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchOpts.InputPath, "input", "i", "", "Directory of pattern files")
	batchCmd.Flags().StringVarP(&batchOpts.OutputPath, "output", "o", "needle-out", "Directory for converted files or previews")
	batchCmd.Flags().StringVarP(&batchOpts.Format, "format", "f", "", "Target format for conversion")
	batchCmd.Flags().BoolVar(&batchOpts.Preview, "preview", false, "Write <name>.preview.json files instead of converting")
	batchCmd.Flags().BoolVarP(&batchOpts.Thumbnail, "thumbnail", "t", false, "Embed PNG thumbnails in previews")
	batchCmd.Flags().IntVarP(&batchOpts.NumEngines, "engines", "e", 0, "Number of parallel engine workers (default: config workers)")
	batchCmd.Flags().BoolVar(&batchOpts.Force, "force", false, "Overwrite existing outputs")

	batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// runBatch orchestrates the batch: job discovery, the engine pool, and progress tracking.
func runBatch(ctx context.Context, opts Options, out io.Writer) error {
	if err := validateBatchFlags(&opts); err != nil {
		return report("Invalid batch options", err)
	}

	jobs, err := collectJobs(opts.InputPath)
	if err != nil {
		return report("Unable to list input directory", err)
	}
	if len(jobs) == 0 {
		fmt.Fprintf(os.Stderr, "🤷 No readable pattern files found in %s\n", opts.InputPath)
		return nil
	}
	if err := os.MkdirAll(opts.OutputPath, 0755); err != nil {
		return report("Unable to create output directory", err)
	}

	fmt.Fprintf(os.Stderr, "📂 Found %d pattern files\n", len(jobs))
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Worker Engines...\n", opts.NumEngines)

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("🧵 Needle Batch"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	clashes := outputClashes(jobs, opts)
	handler := func(ctx context.Context, job types.Job) worker.Result {
		if first, ok := clashes[job.Index]; ok {
			return worker.Result{Err: inputError{fmt.Errorf("%w: %s also writes %s", errOutputClash, filepath.Base(first), outputName(job.Path, opts))}}
		}
		if opts.Preview {
			return previewOne(job, opts)
		}
		return convertOne(job, opts)
	}
	results := worker.Run(ctx, opts.NumEngines, jobs, handler, func(worker.Result) {
		bar.Add(1)
	})
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	failed := printBatchSummary(out, results)
	fmt.Fprintf(os.Stderr, "\n🏁 Batch Complete. %d succeeded, %d failed.\n", len(results)-failed, failed)

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed: %w", failed, len(results), firstFailure(results))
	}
	return nil
}

// collectJobs lists the files in dir that a registered codec can read, sorted by name.
func collectJobs(dir string) ([]types.Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !readable(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	jobs := make([]types.Job, len(names))
	for i, name := range names {
		jobs[i] = types.Job{Index: i, Path: filepath.Join(dir, name)}
	}
	return jobs, nil
}

// errOutputClash fails a job whose output name an earlier job already claimed.
var errOutputClash = errors.New("output name collides with another input")

// outputName is the file a job writes inside the output directory.
func outputName(path string, opts Options) string {
	if opts.Preview {
		stem := strings.TrimSuffix(utils.OutputFilename(path, "json"), ".JSON")
		return stem + ".preview.json"
	}
	return utils.OutputFilename(path, opts.Format)
}

// outputClashes maps the index of every job whose output name (ignoring case)
// was already taken to the path of the job that took it first.
func outputClashes(jobs []types.Job, opts Options) map[int]string {
	claimed := make(map[string]string, len(jobs))
	clashes := make(map[int]string)
	for _, job := range jobs {
		key := strings.ToLower(outputName(job.Path, opts))
		if first, ok := claimed[key]; ok {
			clashes[job.Index] = first
			continue
		}
		claimed[key] = job.Path
	}
	return clashes
}

func readable(name string) bool {
	if strings.EqualFold(filepath.Ext(name), ".zst") {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	c, ok := Registry.Lookup(filepath.Ext(name))
	return ok && c.CanDecode()
}

func decodeJob(job types.Job) (*types.Pattern, error) {
	data, err := utils.ReadInput(job.Path, Cfg.Limits.MaxInputBytes)
	if err != nil {
		return nil, inputError{err}
	}
	p, err := Registry.Decode(filepath.Base(job.Path), data)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, codec.ErrEmptyPattern
	}
	return p, nil
}

func convertOne(job types.Job, opts Options) worker.Result {
	p, err := decodeJob(job)
	if err != nil {
		return worker.Result{Err: err}
	}
	res := worker.Result{Stats: metrics.Compute(p)}

	data, err := Registry.Encode(p, opts.Format)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = filepath.Join(opts.OutputPath, outputName(job.Path, opts))
	res.Err = writeOutput(res.Output, data, opts.Force)
	return res
}

func previewOne(job types.Job, opts Options) worker.Result {
	p, err := decodeJob(job)
	if err != nil {
		return worker.Result{Err: err}
	}
	resp := preview.Assemble(p)
	res := worker.Result{Stats: resp.Stats}

	if opts.Thumbnail {
		img, err := renderDataURI(resp)
		switch {
		case errors.Is(err, render.ErrNothingToDraw):
		case err != nil:
			res.Err = fmt.Errorf("render thumbnail: %w", err)
			return res
		default:
			resp.Image = img
		}
	}

	var buf bytes.Buffer
	if err := resp.Write(&buf, false); err != nil {
		res.Err = err
		return res
	}
	res.Output = filepath.Join(opts.OutputPath, outputName(job.Path, opts))
	res.Err = writeOutput(res.Output, buf.Bytes(), opts.Force)
	return res
}

// errOutputExists is reported instead of prompting; batches never ask questions.
var errOutputExists = errors.New("output already exists (use --force to overwrite)")

func writeOutput(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errOutputExists
		}
	}
	return os.WriteFile(path, data, 0644)
}

func printBatchSummary(out io.Writer, results []worker.Result) int {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tSTITCHES\tSIZE (mm)\tOUTPUT")
	fmt.Fprintln(w, "----\t------\t--------\t---------\t------")

	failed := 0
	for _, r := range results {
		name := filepath.Base(r.Path)
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\t❌ %v\t\t\t\n", name, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t✅\t%d\t%.1f x %.1f\t%s\n", name, r.Stats.Stitches, r.Stats.Width, r.Stats.Height, r.Output)
	}
	w.Flush()
	return failed
}

func firstFailure(results []worker.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// validateBatchFlags ensures all CLI arguments are valid before starting the engines.
func validateBatchFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		return inputError{fmt.Errorf("unable to access input directory: %w", err)}
	}
	if !info.IsDir() {
		return inputError{fmt.Errorf("input path %s is not a directory", opts.InputPath)}
	}

	opts.Format = strings.TrimSpace(opts.Format)
	switch {
	case opts.Preview && opts.Format != "":
		return inputError{errors.New("use either --preview or --format, not both")}
	case !opts.Preview && opts.Format == "":
		return inputError{errors.New("no target format specified (use --format or --preview)")}
	case !opts.Preview && !Registry.Supported(opts.Format):
		return &codec.EncodeError{Format: opts.Format, Reason: "unsupported output format", Unsupported: true}
	}

	inAbs, _ := filepath.Abs(opts.InputPath)
	outAbs, _ := filepath.Abs(opts.OutputPath)
	if inAbs == outAbs {
		return inputError{errors.New("input and output directories must be different")}
	}

	if opts.NumEngines < 1 {
		opts.NumEngines = Cfg.Workers
	}
	return nil
}
