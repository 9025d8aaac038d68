package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	fleettop "github.com/jondoveston/fleettop/internal"
	"github.com/jondoveston/fleettop/internal/config"
	"github.com/jondoveston/fleettop/internal/logger"
	"github.com/jondoveston/fleettop/internal/store"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll every machine once in dashboard mode and print the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		cfg, fleet, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		window := cfg.Dashboard.Window()
		if scalar, _ := cmd.Flags().GetBool("snapshot"); scalar {
			window = cfg.Snapshot.Window()
		}
		results := newPoller(cfg, nil).Poll(ctx, fleet.Endpoints(), window)
		return writeOutput(cmd.OutOrStdout(), format, results, pollTable(fleet.Names(), results))
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Poll every machine once in snapshot mode and store one row per machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		cfg, fleet, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var writer fleettop.LogWriter
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			writer = store.NewMemoryStore()
		} else {
			s, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()
			writer = s
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		recorder := fleettop.NewRecorder(newPoller(cfg, nil), writer,
			fleettop.WithRecorderWindow(cfg.Snapshot.Window()),
			fleettop.WithRecorderLogger(logger.With("component", "recorder")),
		)
		summary, err := recorder.Record(ctx, fleet.Endpoints(), time.Now())
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), format, summary, summaryTable(summary))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent stored snapshots grouped by machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.Server.HistoryLimit
		}

		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		logs, err := s.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		grouped := store.GroupByMachine(logs)
		return writeOutput(cmd.OutOrStdout(), format, grouped, historyTable(grouped))
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show a live terminal dashboard of the fleet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, fleet, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// termui owns the terminal, keep warnings out of it
		if err := logger.Init(logger.Config{Level: "error", Format: cfg.Log.Format}); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		d := fleettop.NewDashboard(newPoller(cfg, nil), fleet, cfg.Dashboard.Window(), cfg.Dashboard.RefreshD)
		return d.Run(ctx)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve poll results, snapshot history and Prometheus metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, fleet, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(prometheus.NewGoCollector())
		reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
		poller := newPoller(cfg, fleettop.NewPollMetrics(reg))
		reg.MustRegister(fleettop.NewFleetCollector(poller, fleet.Endpoints(), cfg.Poll.TimeoutD*2))

		srvCfg := fleettop.ServerConfig{
			Fleet:        fleet,
			Poller:       poller,
			HistoryLimit: cfg.Server.HistoryLimit,
			Dashboard:    cfg.Dashboard.Window(),
			Snapshot:     cfg.Snapshot.Window(),
			Gatherer:     reg,
			Debug:        cfg.Log.Level == "debug",
		}
		if s, err := store.NewSQLiteStore(cfg.Store.Path); err != nil {
			logger.Warn("history disabled", "store", cfg.Store.Path, "error", err)
		} else {
			defer s.Close()
			srvCfg.History = s
		}
		srv := fleettop.NewServer(srvCfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("serving", "listen", cfg.Server.Listen, "machines", fleet.Len())
			errCh <- srv.Start(cfg.Server.Listen)
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName + "." + config.FileType
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := config.WriteFile(path, config.Example(), force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return config.WriteTOML(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	pollCmd.Flags().Bool("snapshot", false, "poll in snapshot mode (one point per chart)")

	snapshotCmd.Flags().String("store", "", "SQLite database path (default fleettop.db)")
	snapshotCmd.Flags().Bool("dry-run", false, "poll and print without writing to the store")
	historyCmd.Flags().String("store", "", "SQLite database path (default fleettop.db)")
	historyCmd.Flags().Int("limit", 0, "number of most recent rows (default server.history_limit)")

	serveCmd.Flags().String("listen", "", "listen address (default 127.0.0.1:8080)")
	serveCmd.Flags().String("store", "", "SQLite database path for /api/history (default fleettop.db)")

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)

	// bound per command so only the running command's flag reaches viper
	for _, c := range []*cobra.Command{snapshotCmd, historyCmd, serveCmd} {
		c.PreRunE = func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("store.path", cmd.Flags().Lookup("store")); err != nil {
				return err
			}
			if f := cmd.Flags().Lookup("listen"); f != nil {
				return viper.BindPFlag("server.listen", f)
			}
			return nil
		}
	}
}
