package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/davidZakaria/cath-archives-sub000/internal/output"
	"github.com/davidZakaria/cath-archives-sub000/internal/svcctx"
)

// engineInfo is one row of the engines listing.
type engineInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Registered bool     `json:"registered" yaml:"registered"`
	RateLimit  float64  `json:"requests_per_second" yaml:"requests_per_second"`
	MaxRetries int      `json:"max_retries" yaml:"max_retries"`
	Languages  []string `json:"languages,omitempty" yaml:"languages,omitempty"`
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List configured OCR engines",
	Long: `List every configured OCR engine.

An engine is "enabled" when its config says so, and "registered" when it
could actually be constructed (cloud engines need an API key in the
environment). Only registered engines take part in processing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs := svcctx.ServicesFrom(cmd.Context())
		if svcs == nil {
			return fmt.Errorf("services not initialized")
		}
		cfg := svcs.Config.Get()

		names := make([]string, 0, len(cfg.Engines))
		for name := range cfg.Engines {
			names = append(names, name)
		}
		sort.Strings(names)

		infos := make([]engineInfo, 0, len(names))
		for _, name := range names {
			engCfg := cfg.Engines[name]
			info := engineInfo{
				Name:      name,
				Type:      engCfg.Type,
				Enabled:   engCfg.Enabled,
				RateLimit: engCfg.RateLimit,
				Languages: engCfg.Languages,
			}
			if adapter, err := svcs.Engines.Get(name); err == nil {
				info.Registered = true
				info.RateLimit = adapter.RequestsPerSecond()
				info.MaxRetries = adapter.MaxRetries()
			}
			infos = append(infos, info)
		}

		return output.Print(infos)
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
