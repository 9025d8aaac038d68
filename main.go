package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	fleettop "github.com/jondoveston/fleettop/internal"
	"github.com/jondoveston/fleettop/internal/config"
	"github.com/jondoveston/fleettop/internal/logger"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleettop",
	Short: "Poll a fleet of netdata agents for cpu, memory, disk and network",
	Long: `fleettop queries the /api/v1/data endpoint of every configured netdata
agent and shows, logs or serves the normalized cpu, memory, disk and network
readings.

Examples:
  fleettop config init
  fleettop dashboard
  fleettop poll -o json
  fleettop snapshot --machine local=http://192.155.91.125:19999
  fleettop history --limit 50
  FLEETTOP_POLL_WORKERS=8 fleettop serve --listen :8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("fleettop version %s\n", version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	// Define flags
	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "config file (default: ./fleettop.toml or $XDG_CONFIG_HOME/fleettop/fleettop.toml)")
	pflags.StringSlice("machine", nil, "machine as name=url, repeatable; replaces the machines of the config file")
	pflags.String("timeout", "", "per request timeout (default 5s)")
	pflags.Int("workers", 0, "machines polled at the same time (default 4)")
	pflags.String("log-level", "", "log level: debug, info, warn, error")
	pflags.String("log-format", "", "log format: text, json")
	pflags.StringP("output", "o", "table", "output format: table, json, yaml")
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")

	// Bind flags to Viper keys; zero flag defaults let config defaults apply
	for key, flag := range map[string]string{
		"machine":      "machine",
		"poll.timeout": "timeout",
		"poll.workers": "workers",
		"log.level":    "log-level",
		"log.format":   "log-format",
	} {
		if err := viper.BindPFlag(key, pflags.Lookup(flag)); err != nil {
			log.Fatalf("failed to bind %s: %v", key, err)
		}
	}

	rootCmd.AddCommand(pollCmd, snapshotCmd, historyCmd, dashboardCmd, serveCmd, configCmd)
}

// loadConfig reads the configuration and installs the logger it describes
func loadConfig(cmd *cobra.Command) (*config.Config, *fleettop.Fleet, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(viper.GetViper(), path)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logger()); err != nil {
		return nil, nil, err
	}
	fleet, err := cfg.Fleet()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("configuration loaded", "config", viper.ConfigFileUsed(), "machines", fleet.Len())
	return cfg, fleet, nil
}

func outputFlag(cmd *cobra.Command) (outputFormat, error) {
	s, _ := cmd.Flags().GetString("output")
	return parseOutputFormat(s)
}

// newPoller wires the fetch, aggregate and poll layers from cfg
func newPoller(cfg *config.Config, metrics *fleettop.PollMetrics) *fleettop.FleetPoller {
	fetcher := fleettop.NewChartFetcher(
		fleettop.WithTimeout(cfg.Poll.TimeoutD),
		fleettop.WithFetchMetrics(metrics),
	)
	return fleettop.NewFleetPoller(
		fleettop.NewMetricAggregator(fetcher),
		fleettop.WithWorkers(cfg.Poll.Workers),
		fleettop.WithPollMetrics(metrics),
		fleettop.WithLogger(logger.With("component", "poller")),
	)
}
