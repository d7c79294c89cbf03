package cmd

import (
	"log/slog"
	"os"

	"draw_queue/internal/config"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "drawqueue",
		Short:         "Admission queue for product lottery draws",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfgFile string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.AddCommand(serveCmd, reapCmd, tokenCmd, versionCmd)
}

// Execute runs the command line.
func Execute() error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := rootCmd.Execute(); err != nil {
		slog.Default().Error("drawqueue failed", slog.String("err", err.Error()))
		return err
	}
	return nil
}

// loadConfig reads the configuration and installs the configured logger.
func loadConfig() (*config.Config, error) {
	c, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(config.NewLogger(c.Logger))
	return c, nil
}
