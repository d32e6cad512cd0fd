package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// --- 1. Error Reporting ---

// ShowError prints the boxed error report used by every needle command.
func ShowError(context string, err error) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 NEEDLE ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Die prints the error report and exits with the given status.
func Die(context string, err error, code int) {
	ShowError(context, err)
	os.Exit(code)
}

// --- 2. Input Files ---

// ErrInputTooLarge is returned when an input exceeds the configured limit.
var ErrInputTooLarge = errors.New("input file is too large")

// ValidateInput checks that path names a regular file with an extension.
func ValidateInput(path string) error {
	if path == "" {
		return errors.New("no input file given")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected a pattern file", path)
	}
	if filepath.Ext(path) == "" {
		return fmt.Errorf("input file %s has no extension", filepath.Base(path))
	}
	return nil
}

// ReadInput validates path and reads at most limit bytes from it.
func ReadInput(path string, limit int64) ([]byte, error) {
	if err := ValidateInput(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Read one byte past the limit to detect oversize files without trusting Stat.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInputTooLarge, filepath.Base(path), limit)
	}
	return data, nil
}

// --- 3. Output Names ---

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SafeFilename reduces name to a plain ASCII file name with no directory parts.
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "pattern"
	}
	return name
}

// OutputFilename names a converted file: the sanitized input stem plus the
// target format as an upper-case extension ("design.exp" -> "design.DST").
func OutputFilename(input, format string) string {
	base := SafeFilename(input)
	if strings.EqualFold(filepath.Ext(base), ".zst") {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "pattern"
	}
	ext := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(format), "."))
	return stem + "." + ext
}
