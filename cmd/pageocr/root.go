package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidZakaria/cath-archives-sub000/internal/config"
	"github.com/davidZakaria/cath-archives-sub000/internal/engines"
	"github.com/davidZakaria/cath-archives-sub000/internal/home"
	"github.com/davidZakaria/cath-archives-sub000/internal/output"
	"github.com/davidZakaria/cath-archives-sub000/internal/svcctx"
	"github.com/davidZakaria/cath-archives-sub000/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "pageocr",
	Short: "OCR orchestration for scanned right-to-left magazine pages",
	Long: `pageocr digitizes scanned Arabic magazine and newspaper pages.

Each page is raced across multiple OCR engines; results are scored for
confidence, Arabic coverage, and structure, and the best transcription is
reconstructed into column-aware markdown.

The pipeline includes:
  - Column detection tuned for right-to-left layouts
  - Pluggable OCR engines (tesseract, Google Vision, LLM vision)
  - Quality scoring and engine selection with an audit trail
  - Document reconstruction with title and caption detection`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pageocr/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pageocr home directory (default: ~/.pageocr)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)",
	)

	// Every command runs against the same service set; build it once and
	// hand it down through the command context.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		output.SetFormat(outputFormat)
		svcs, err := buildServices()
		if err != nil {
			return err
		}
		cmd.SetContext(svcctx.WithServices(cmd.Context(), svcs))
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// buildServices loads configuration and wires the logger, home directory,
// and engine registry shared by all commands.
func buildServices() (*svcctx.Services, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
	slog.SetDefault(logger)

	dir := homeDir
	if dir == "" {
		dir = cfg.Home
	}
	h, err := home.New(dir)
	if err != nil {
		return nil, err
	}

	reg := engines.NewRegistryFromConfig(cfg.ToEngineRegistryConfig())
	reg.SetLogger(logger)

	// Hot-reload engine settings while long batch runs are in flight.
	if mgr.ConfigFileUsed() != "" {
		mgr.OnChange(func(c *config.Config) {
			reg.Reload(c.ToEngineRegistryConfig())
		})
		mgr.WatchConfig()
	}

	return &svcctx.Services{
		Logger:  logger,
		Config:  mgr,
		Engines: reg,
		Home:    h,
	}, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
