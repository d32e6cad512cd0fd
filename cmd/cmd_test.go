package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/types"
	"github.com/goccy/go-json"
)

const sampleJSON = `{
	"name": "sample",
	"threads": [{"color": "#FF0000"}, {"color": "#00FF00"}],
	"stitches": [[0, 0], [1000, 1000], [0, 0, "COLOR_CHANGE"], [500, 500]]
}`

// silenceStderr discards stderr for the duration of a test.
func silenceStderr(t *testing.T) {
	t.Helper()
	oldStderr := os.Stderr
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = devNull
	t.Cleanup(func() {
		os.Stderr = oldStderr
		devNull.Close()
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunPreview(t *testing.T) {
	silenceStderr(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "design.json", sampleJSON)

	var out bytes.Buffer
	if err := runPreview(context.Background(), Options{InputPath: input}, &out); err != nil {
		t.Fatalf("runPreview() failed: %v", err)
	}

	var payload struct {
		Mode    string `json:"mode"`
		Pattern []struct {
			Color    string   `json:"color"`
			Stitches [][2]int `json:"stitches"`
		} `json:"pattern"`
		Bounds []int `json:"bounds"`
		Stats  struct {
			Stitches int     `json:"stitches"`
			Width    float64 `json:"width"`
			Colors   int     `json:"colors"`
			Changes  int     `json:"changes"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}

	if payload.Mode != "vector" || len(payload.Pattern) != 2 {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Pattern[0].Color != "#FF0000" || payload.Pattern[1].Color != "#00FF00" {
		t.Errorf("block colors = %s, %s", payload.Pattern[0].Color, payload.Pattern[1].Color)
	}
	if payload.Stats.Width != 100.0 || payload.Stats.Colors != 2 || payload.Stats.Changes != 1 || payload.Stats.Stitches != 4 {
		t.Errorf("stats = %+v", payload.Stats)
	}
	if len(payload.Bounds) != 4 || payload.Bounds[2] != 1000 {
		t.Errorf("bounds = %v", payload.Bounds)
	}
}

func TestRunPreviewWritesFiles(t *testing.T) {
	silenceStderr(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "design.json", sampleJSON)
	outJSON := filepath.Join(dir, "preview.json")
	outPNG := filepath.Join(dir, "thumb.png")

	opts := Options{InputPath: input, OutputPath: outJSON, ThumbnailOut: outPNG, Thumbnail: true}
	if err := runPreview(context.Background(), opts, &bytes.Buffer{}); err != nil {
		t.Fatalf("runPreview() failed: %v", err)
	}

	data, err := os.ReadFile(outJSON)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"image":"data:image/png;base64,`)) {
		t.Error("preview file is missing the embedded thumbnail")
	}
	img, err := os.ReadFile(outPNG)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Error("thumbnail file is not a PNG")
	}
}

func TestRunPreviewErrors(t *testing.T) {
	silenceStderr(t)
	dir := t.TempDir()

	tests := []struct {
		name     string
		opts     Options
		wantCode int
	}{
		{
			name:     "Missing input",
			opts:     Options{InputPath: filepath.Join(dir, "missing.json")},
			wantCode: 2,
		},
		{
			name:     "Malformed file",
			opts:     Options{InputPath: writeFile(t, dir, "bad.json", "{")},
			wantCode: 2,
		},
		{
			name:     "Empty document",
			opts:     Options{InputPath: writeFile(t, dir, "empty.json", "null")},
			wantCode: 2,
		},
		{
			name:     "Thumbnail not png",
			opts:     Options{InputPath: writeFile(t, dir, "ok.json", sampleJSON), ThumbnailOut: filepath.Join(dir, "thumb.jpg")},
			wantCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runPreview(context.Background(), tt.opts, &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected error")
			}
			var r reportedError
			if !errors.As(err, &r) {
				t.Errorf("error %v was not reported to the user", err)
			}
			if got := exitCode(err); got != tt.wantCode {
				t.Errorf("exitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestRunConvert(t *testing.T) {
	silenceStderr(t)
	dir := t.TempDir()
	outDir := t.TempDir()
	input := writeFile(t, dir, "design.json", sampleJSON)

	outPath, err := runConvert(context.Background(), Options{InputPath: input, Format: "csv", OutputPath: outDir})
	if err != nil {
		t.Fatalf("runConvert() failed: %v", err)
	}
	if want := filepath.Join(outDir, "design.CSV"); outPath != want {
		t.Errorf("output path = %s, want %s", outPath, want)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	p, err := Registry.Decode("design.csv", data)
	if err != nil {
		t.Fatalf("converted file does not decode: %v", err)
	}
	if p.CountStitches() != 4 || len(p.Threads) != 2 {
		t.Errorf("converted pattern has %d stitches, %d threads", p.CountStitches(), len(p.Threads))
	}

	t.Run("Declined overwrite keeps the file", func(t *testing.T) {
		old := confirmOverwrite
		defer func() { confirmOverwrite = old }()
		asked := false
		confirmOverwrite = func(string) (bool, error) { asked = true; return false, nil }

		if err := os.WriteFile(outPath, []byte("keep me"), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := runConvert(context.Background(), Options{InputPath: input, Format: "CSV", OutputPath: outDir})
		if err != nil || got != "" {
			t.Fatalf("runConvert() = %q, %v; want skipped", got, err)
		}
		if !asked {
			t.Error("user was not asked before overwriting")
		}
		if data, _ := os.ReadFile(outPath); string(data) != "keep me" {
			t.Error("existing file was overwritten")
		}
	})

	t.Run("Force skips the prompt", func(t *testing.T) {
		old := confirmOverwrite
		defer func() { confirmOverwrite = old }()
		confirmOverwrite = func(string) (bool, error) { t.Error("prompted despite --force"); return false, nil }

		if _, err := runConvert(context.Background(), Options{InputPath: input, Format: "csv", OutputPath: outDir, Force: true}); err != nil {
			t.Fatal(err)
		}
		if data, _ := os.ReadFile(outPath); string(data) == "keep me" {
			t.Error("file was not overwritten with --force")
		}
	})
}

func TestValidateConvertFlags(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "design.json", sampleJSON)
	noExt := writeFile(t, dir, "design", sampleJSON)

	tests := []struct {
		name       string
		opts       Options
		wantErr    bool
		wantClient bool
	}{
		{name: "Valid options", opts: Options{InputPath: input, Format: "yaml", OutputPath: dir}},
		{name: "Compressed target", opts: Options{InputPath: input, Format: "json.zst", OutputPath: dir}},
		{name: "Missing format", opts: Options{InputPath: input, Format: "  ", OutputPath: dir}, wantErr: true, wantClient: true},
		{name: "Unknown format", opts: Options{InputPath: input, Format: "dst", OutputPath: dir}, wantErr: true, wantClient: true},
		{name: "No extension", opts: Options{InputPath: noExt, Format: "json", OutputPath: dir}, wantErr: true, wantClient: true},
		{name: "Input is directory", opts: Options{InputPath: dir, Format: "json", OutputPath: dir}, wantErr: true, wantClient: true},
		{name: "Output is a file", opts: Options{InputPath: input, Format: "json", OutputPath: input}, wantErr: true, wantClient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConvertFlags(&tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConvertFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && (exitCode(err) == 2) != tt.wantClient {
				t.Errorf("exitCode(%v) = %d", err, exitCode(err))
			}
		})
	}
}

func TestRunStats(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", sampleJSON)
	bad := writeFile(t, dir, "bad.yaml", "stitches: [[1]]")

	var out bytes.Buffer
	if err := runStats([]string{good}, &out); err != nil {
		t.Fatalf("runStats() failed: %v", err)
	}
	if !strings.Contains(out.String(), "good.json") || !strings.Contains(out.String(), "100.0") {
		t.Errorf("stats table missing data:\n%s", out.String())
	}

	out.Reset()
	err := runStats([]string{good, bad}, &out)
	if err == nil {
		t.Fatal("expected error for unreadable file")
	}
	var de *codec.DecodeError
	if !errors.As(err, &de) {
		t.Errorf("runStats() error = %v, want a wrapped DecodeError", err)
	}
	if !strings.Contains(out.String(), "bad.yaml") {
		t.Errorf("failed file not listed:\n%s", out.String())
	}
}

func TestRunFormats(t *testing.T) {
	var out bytes.Buffer
	runFormats(&out)
	for _, want := range []string{"json", "yaml, yml", "csv", "png", ".zst"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("formats output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunBatch(t *testing.T) {
	silenceStderr(t)
	in := t.TempDir()
	writeFile(t, in, "a.json", sampleJSON)
	writeFile(t, in, "b.json", sampleJSON)
	writeFile(t, in, "broken.json", "{")
	writeFile(t, in, "notes.txt", "ignored")

	t.Run("Convert", func(t *testing.T) {
		out := t.TempDir()
		var table bytes.Buffer
		err := runBatch(context.Background(), Options{InputPath: in, OutputPath: out, Format: "yaml", NumEngines: 2}, &table)
		if err == nil {
			t.Fatal("expected an error for the broken file")
		}
		if exitCode(err) != 2 {
			t.Errorf("exitCode() = %d, want 2", exitCode(err))
		}

		for _, name := range []string{"a.YAML", "b.YAML"} {
			if _, err := os.Stat(filepath.Join(out, name)); err != nil {
				t.Errorf("missing output %s: %v", name, err)
			}
		}
		if strings.Contains(table.String(), "notes.txt") {
			t.Error("unreadable extension was processed")
		}
	})

	t.Run("Preview", func(t *testing.T) {
		out := t.TempDir()
		os.Remove(filepath.Join(in, "broken.json"))
		defer writeFile(t, in, "broken.json", "{")

		err := runBatch(context.Background(), Options{InputPath: in, OutputPath: out, Preview: true, Thumbnail: true}, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("runBatch() failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(out, "a.preview.json"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(data, []byte(`"mode":"vector"`)) || !bytes.Contains(data, []byte(`"image":"data:image/png`)) {
			t.Errorf("preview file content unexpected: %.120s", data)
		}

		// Second run refuses to overwrite without --force.
		if err := runBatch(context.Background(), Options{InputPath: in, OutputPath: out, Preview: true}, &bytes.Buffer{}); !errors.Is(err, errOutputExists) {
			t.Errorf("rerun error = %v, want errOutputExists", err)
		}
	})
}

func TestValidateBatchFlags(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.json", sampleJSON)

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "Convert", opts: Options{InputPath: dir, OutputPath: filepath.Join(dir, "out"), Format: "csv"}},
		{name: "Preview", opts: Options{InputPath: dir, OutputPath: filepath.Join(dir, "out"), Preview: true}},
		{name: "Both modes", opts: Options{InputPath: dir, OutputPath: "x", Preview: true, Format: "csv"}, wantErr: true},
		{name: "No mode", opts: Options{InputPath: dir, OutputPath: "x"}, wantErr: true},
		{name: "Unknown format", opts: Options{InputPath: dir, OutputPath: "x", Format: "pes"}, wantErr: true},
		{name: "Input is file", opts: Options{InputPath: file, OutputPath: "x", Format: "csv"}, wantErr: true},
		{name: "Same directories", opts: Options{InputPath: dir, OutputPath: dir, Format: "csv"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBatchFlags(&tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateBatchFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.opts.NumEngines != Cfg.Workers {
				t.Errorf("NumEngines = %d, want config default %d", tt.opts.NumEngines, Cfg.Workers)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{inputError{errors.New("no file")}, 2},
		{reportedError{codec.ErrEmptyPattern}, 2},
		{&codec.EncodeError{Format: "json"}, 1},
		{errors.New("disk full"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestLoadConfigFlagOverridesEnv(t *testing.T) {
	t.Setenv("NEEDLE_LOG_LEVEL", "loud")
	t.Setenv("NEEDLE_WORKERS", "")
	t.Setenv("NEEDLE_MAX_INPUT_BYTES", "")

	cfg, err := loadConfig("", "debug")
	if err != nil {
		t.Fatalf("loadConfig() error = %v, want flag to override the env level", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}

	if _, err := loadConfig("", ""); err == nil {
		t.Error("loadConfig() accepted an unknown env log level without a flag")
	}
}

func TestRunBatchOutputClash(t *testing.T) {
	silenceStderr(t)
	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, in, "a.json", sampleJSON)
	writeFile(t, in, "a.yaml", "threads: []\nstitches: [[0, 0], [10, 10]]\n")

	var table bytes.Buffer
	err := runBatch(context.Background(), Options{InputPath: in, OutputPath: out, Format: "csv", Force: true, NumEngines: 2}, &table)
	if !errors.Is(err, errOutputClash) {
		t.Fatalf("runBatch() error = %v, want errOutputClash", err)
	}
	if exitCode(err) != 2 {
		t.Errorf("exitCode() = %d, want 2", exitCode(err))
	}

	data, err := os.ReadFile(filepath.Join(out, "a.CSV"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := Registry.Decode("a.csv", data)
	if err != nil {
		t.Fatal(err)
	}
	if p.CountStitches() != 4 {
		t.Errorf("a.CSV has %d stitches, want the 4 from a.json", p.CountStitches())
	}
	if !strings.Contains(table.String(), "a.yaml") || !strings.Contains(table.String(), "❌") {
		t.Errorf("clashing job not reported as failed:\n%s", table.String())
	}
}

func TestOutputClashes(t *testing.T) {
	jobs := []types.Job{
		{Index: 0, Path: "in/a.json"},
		{Index: 1, Path: "in/A.yaml"},
		{Index: 2, Path: "in/b.json"},
		{Index: 3, Path: "in/b.json.zst"},
	}

	got := outputClashes(jobs, Options{Format: "csv"})
	want := map[int]string{1: "in/a.json", 3: "in/b.json"}
	if len(got) != len(want) {
		t.Fatalf("outputClashes() = %v, want %v", got, want)
	}
	for i, first := range want {
		if got[i] != first {
			t.Errorf("job %d clashes with %q, want %q", i, got[i], first)
		}
	}

	if got := outputClashes(jobs[:1], Options{Preview: true}); len(got) != 0 {
		t.Errorf("single job reported clashes: %v", got)
	}
}

func TestPreviewOneThumbnailErrors(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	input := writeFile(t, in, "design.json", sampleJSON)
	blank := writeFile(t, in, "blank.json", `{"name": "blank"}`)
	opts := Options{OutputPath: out, Preview: true, Thumbnail: true}

	t.Run("Nothing to draw is not a failure", func(t *testing.T) {
		res := previewOne(types.Job{Path: blank}, opts)
		if res.Err != nil {
			t.Fatalf("previewOne() error = %v", res.Err)
		}
		data, err := os.ReadFile(res.Output)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Contains(data, []byte(`"image"`)) {
			t.Error("empty pattern got a thumbnail")
		}
	})

	t.Run("Render failure fails the job", func(t *testing.T) {
		old := Cfg
		defer func() { Cfg = old }()
		Cfg.Thumbnail.LineWidth = 0

		res := previewOne(types.Job{Path: input}, opts)
		if res.Err == nil {
			t.Fatal("previewOne() ignored a render error")
		}
		if _, err := os.Stat(filepath.Join(out, "design.preview.json")); !os.IsNotExist(err) {
			t.Errorf("preview written despite render error: %v", err)
		}
	})
}
