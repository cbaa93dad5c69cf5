// Cadence renders assistant responses to Polish SSML with emotion-aware
// prosody and optionally voices them through Piper.
//
// Usage:
//
//	cadence serve --config /path/to/cadence.yaml
//	cadence build --emotion stress "Mam 5 zadań na dziś."
//	cadence validate response.xml
//	cadence rules export --format yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nadzzz/cadence/internal/config"
	"github.com/nadzzz/cadence/internal/ssml"
)

// version is set at build time via ldflags.
var version = "dev"

var configFile string

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cadence",
		Short:        "Polish SSML voice response service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/cadence.yaml)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(buildCmd())
	cmd.AddCommand(validateCmd())
	cmd.AddCommand(rulesCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cadence %s\n", version)
		},
	}
}

// loadBuilder reads the configuration, installs the logger writing to logOut
// and constructs the markup builder.
func loadBuilder(logOut io.Writer) (*config.Config, *ssml.Builder, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging, logOut)

	rules, err := cfg.SSML.RuleSet()
	if err != nil {
		return nil, nil, fmt.Errorf("loading ssml rules: %w", err)
	}
	b, err := ssml.New(rules)
	if err != nil {
		return nil, nil, fmt.Errorf("building ssml rules: %w", err)
	}
	return cfg, b, nil
}
