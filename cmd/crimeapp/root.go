package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/config"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
)

const version = "0.3.0"

var (
	configFile string
	debug      bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "crimeapp",
	Short: "Face identification for registered citizens",
	Long: `crimeapp keeps a registry of citizens and their reference pictures.
Citizens marked Wanted are looked for in a live camera feed or in uploaded
pictures; every positive match is logged as a sighting with its location.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.WithError(err).Debug("Command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func initConfig(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config %s: %w", configFile, err)
		}
	} else {
		cfg, err = config.LoadDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
			cfg = config.DefaultConfig()
		}
	}

	cfg.ApplyEnv()
	cfg.ExpandPaths()
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.Debugf("crimeapp v%s starting", version)
	return nil
}
