package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/config"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/handler"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/scheduler"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log logger.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "subly-server",
	Short: "Exchange rate aggregation and service icon resolution",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}

		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		// Subcommands print results on stdout, so their logs go to stderr
		output := os.Stdout
		if cmd != cmd.Root() {
			output = os.Stderr
		}
		log = logger.NewJSONLogger(output, level)
		logger.SetDefaultLogger(log)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.Flags().Int("port", 0, "listen port override")

	rootCmd.AddCommand(resolveIconCmd)
	rootCmd.AddCommand(ratesCmd)
}

func runServer() error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	var warmer *scheduler.Warmer
	if cfg.Rates.WarmSchedule != "" {
		warmer, err = scheduler.NewWarmer(cfg.Rates.WarmSchedule, a.rates, a.currencies, log)
		if err != nil {
			return err
		}
		warmer.Start()
	}

	srv := a.server()
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": srv.Addr,
		})
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-stop:
		log.Info("Shutting down", map[string]interface{}{
			"signal": sig.String(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if warmer != nil {
		select {
		case <-warmer.Stop().Done():
		case <-ctx.Done():
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

var resolveIconCmd = &cobra.Command{
	Use:   "resolve-icon NAME [CATEGORY]",
	Short: "Resolve one service icon and print the result",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		category := ""
		if len(args) == 2 {
			category = args[1]
		}

		result := a.icons.Resolve(cmd.Context(), args[0], category)
		return printJSON(cmd, handler.ResolveIconResponse{
			IconURL:  result.IconURL,
			Provider: result.Provider,
			Cached:   result.Cached,
		})
	},
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print the current aggregated USD rate table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		snapshot := a.rates.GetRates(cmd.Context())
		return printJSON(cmd, handler.NewRatesResponse(snapshot, "USD"))
	},
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
