package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/notargets/meshoctree/config"
)

var rootCmd = &cobra.Command{
	Use:   "meshoctree",
	Short: "Builds octrees over triangulated surfaces",
	Long: `Builds the octree a mesh generator refines against a boundary surface,
on one or several local ranks, and reports what it produced`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return errors.Wrap(err, "log-level")
		}
		logrus.SetLevel(lvl)
		if asJSON, _ := cmd.Flags().GetBool("log-json"); asJSON {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().StringP("mesh", "m", "", "tetrahedral volume mesh whose boundary is the surface")
	rootCmd.PersistentFlags().StringP("config", "c", "", "TOML settings file, defaults apply when empty")
	rootCmd.PersistentFlags().IntP("ranks", "r", 0, "number of local ranks, overrides the settings file")
	rootCmd.PersistentFlags().String("strategy", "", "partition strategy: block, roundrobin, graph or sfc")
}

// loadSettings reads the settings file and applies the command line overrides
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	s := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if s, err = config.Load(path); err != nil {
			return s, err
		}
	}
	if ranks, _ := cmd.Flags().GetInt("ranks"); ranks > 0 {
		s.Parallel.Ranks = ranks
	}
	if strategy, _ := cmd.Flags().GetString("strategy"); strategy != "" {
		s.Parallel.Strategy = strategy
	}
	return s, s.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
