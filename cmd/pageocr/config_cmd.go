package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidZakaria/cath-archives-sub000/internal/config"
	"github.com/davidZakaria/cath-archives-sub000/internal/output"
	"github.com/davidZakaria/cath-archives-sub000/internal/svcctx"
)

var (
	configInitForce bool
	configReveal    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pageocr configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the commented default config file",
	Long: `Write the default configuration to the pageocr home directory.

The file documents every setting; API keys reference environment
variables with ${ENV_VAR} syntax so secrets stay out of the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs := svcctx.ServicesFrom(cmd.Context())
		if svcs == nil {
			return fmt.Errorf("services not initialized")
		}

		if err := svcs.Home.EnsureExists(); err != nil {
			return fmt.Errorf("failed to create home directory: %w", err)
		}

		path := svcs.Home.ConfigPath()
		if svcs.Home.ConfigExists() && !configInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}

		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging the config file, environment
variables, and defaults. API keys are masked unless --reveal is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs := svcctx.ServicesFrom(cmd.Context())
		if svcs == nil {
			return fmt.Errorf("services not initialized")
		}

		cfg := *svcs.Config.Get()

		engines := make(map[string]config.EngineCfg, len(cfg.Engines))
		for name, eng := range cfg.Engines {
			eng.APIKey = displayKey(config.ResolveEnvVars(eng.APIKey))
			eng.BaseURL = config.ResolveEnvVars(eng.BaseURL)
			engines[name] = eng
		}
		cfg.Engines = engines

		return output.Print(&cfg)
	},
}

// displayKey hides key material unless the user asked for it.
func displayKey(key string) string {
	if key == "" || configReveal {
		return key
	}
	return "[set]"
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().BoolVar(&configReveal, "reveal", false, "Show resolved API keys instead of masking them")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
