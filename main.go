package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/kse-bridge/internal/config"
	"github.com/tournevent/kse-bridge/internal/server"
	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kse-bridge",
	Short:   "KSE shipment bridge - sends unfulfilled Shopify order lines to KSE",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Print the current order lines as JSON",
	RunE:  runOrders,
}

var submitCmd = &cobra.Command{
	Use:   "submit LINE_ID...",
	Short: "Submit order lines to KSE and print the per-line report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the per-session KSE API key",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the KSE API key for a session",
	RunE:  runCredentialSet,
}

var (
	sessionFlag string
	apiKeyFlag  string
)

func init() {
	submitCmd.Flags().StringVar(&sessionFlag, "session", "", "merchant session id")
	_ = submitCmd.MarkFlagRequired("session")

	credentialSetCmd.Flags().StringVar(&sessionFlag, "session", "", "merchant session id")
	credentialSetCmd.Flags().StringVar(&apiKeyFlag, "key", "", "KSE API key")
	_ = credentialSetCmd.MarkFlagRequired("session")
	_ = credentialSetCmd.MarkFlagRequired("key")

	credentialCmd.AddCommand(credentialSetCmd)
	rootCmd.AddCommand(serveCmd, ordersCmd, submitCmd, credentialCmd)
}

// bootstrap loads configuration and the logger shared by all commands.
func bootstrap() (*config.Config, *otelzap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.WithoutCancel(ctx))
	}

	a, err := initApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting KSE bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Bool("kse_mock", cfg.KSEUseMock),
		zap.Bool("shopify_mock", cfg.ShopifyUseMock),
	)

	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Orchestrator: a.orchestrator,
		Settings:     a.store,
		Notifier:     server.NewLogNotifier(logger),
		Logger:       logger,
		Metrics:      a.metrics,
		Gatherer:     a.registry,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runOrders(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := initApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	lines, err := a.orchestrator.ListLines(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing orders: %w", err)
	}
	return printJSON(cmd, lines)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ids := make([]order.LineID, 0, len(args))
	for _, arg := range args {
		id, err := order.ParseLineID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := initApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.orchestrator.Submit(cmd.Context(), ids, sessionFlag)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if failed := report.Err(); failed != nil {
		return errors.New("one or more lines failed")
	}
	return nil
}

func runCredentialSet(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := initCredentialStore(cfg)
	if err != nil {
		return err
	}

	rec, err := store.Upsert(cmd.Context(), sessionFlag, apiKeyFlag)
	if err != nil {
		return err
	}
	cmd.Printf("stored credential %s for session %s\n", rec.ID, rec.SessionID)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
