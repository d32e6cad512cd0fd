package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/config"
	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/utils"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for preview, convert, and batch commands
type Options struct {
	InputPath    string
	OutputPath   string
	Format       string
	NumEngines   int
	Force        bool
	Preview      bool
	Thumbnail    bool
	ThumbnailOut string
	Pretty       bool
}

var (
	// Cfg is the configuration loaded by the root command
	Cfg = config.Default()
	// Registry holds every pattern format the commands can read or write
	Registry = codec.Default(Cfg.RenderOptions())

	configPath string
	logLevel   string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "needle",
	Short:         "Embroidery pattern preview & conversion",
	Version:       Version, // This enables the --version flag
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flag first, then the environment, then built-in defaults
		if configPath == "" {
			configPath = os.Getenv("NEEDLE_CONFIG")
		}

		loaded, err := loadConfig(configPath, logLevel)
		if err != nil {
			return inputError{fmt.Errorf("failed to load configuration: %w", err)}
		}
		level, _ := logging.ParseLevel(loaded.LogLevel)
		logging.Set(logging.NewText(os.Stderr, level))

		Cfg = loaded
		Registry = codec.Default(Cfg.RenderOptions())
		return nil
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		var r reportedError
		if errors.As(err, &r) {
			os.Exit(exitCode(err))
		}
		utils.Die("Command failed", err, exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: $NEEDLE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// loadConfig reads the config file and environment, applies the --log-level
// flag on top, and only then validates.
func loadConfig(path, level string) (config.Config, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return cfg, err
	}
	if level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

// inputError marks a problem with what the user asked for.
type inputError struct{ error }

func (e inputError) Unwrap() error { return e.error }

// reportedError has already been shown to the user with utils.ShowError.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// report prints the error box once and marks err as shown.
func report(msg string, err error) error {
	utils.ShowError(msg, err)
	return reportedError{err}
}

// exitCode is 2 for errors caused by the input and 1 for everything else.
func exitCode(err error) int {
	var in inputError
	if errors.As(err, &in) || codec.IsClientError(err) {
		return 2
	}
	return 1
}
