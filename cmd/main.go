package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/app"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

var (
	log *logger.Logger

	embedBatch int
	askForce   bool
)

var rootCmd = &cobra.Command{
	Use:           "starciti",
	Short:         "StarCiti ship sales consultant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		logMode := os.Getenv("LOG_MODE")
		if logMode == "" {
			logMode = "development"
		}
		l, err := logger.New(logMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Start(ctx); err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := app.OpenDB(log, true)
		if err != nil {
			return err
		}
		return database.Close()
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog maintenance",
}

var catalogEmbedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute embeddings for ships stored without one",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.EmbedCatalog(cmd.Context(), log, embedBatch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "embedded %d ships\n", n)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the consultant one question in a fresh conversation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.New(ctx, log)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Ask(ctx, strings.Join(args, " "), askForce)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
		if len(res.RecommendedItems) > 0 {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.RecommendedItems)
		}
		return nil
	},
}

func init() {
	catalogEmbedCmd.Flags().IntVar(&embedBatch, "batch", 32, "ships per embedding request")
	askCmd.Flags().BoolVar(&askForce, "recommend", false, "force a recommendation turn")

	catalogCmd.AddCommand(catalogEmbedCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, catalogCmd, askCmd)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if log != nil {
		log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
