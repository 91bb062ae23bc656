package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Victor-armando18/service-vat/internal/bootstrap"
	"github.com/Victor-armando18/service-vat/internal/config"
	"github.com/Victor-armando18/service-vat/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "vatctl",
	Short: "VAT calculation diagnostics",
	Long: `vatctl runs the VAT core from the command line.
- calculate: compute VAT for a cart snapshot file and print items, breakdown and totals.
- rules: list, validate or dry-run rule packs against a context file.
- region: resolve which VAT region a country falls in on a date.
The in-memory store with the built-in seed is used unless --store postgres is given.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("store", config.StoreMemory, "store backend (memory|postgres)")
	rootCmd.PersistentFlags().String("database-url", "", "postgres DSN for --store postgres")
	rootCmd.PersistentFlags().String("rules-file", "", "rule pack (yaml or json) replacing the built-in rules")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("rules_file", rootCmd.PersistentFlags().Lookup("rules-file"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(calculateCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(regionCmd())
}

func withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	// vatctl never waits on a queue or a broker.
	cfg.AuditMode = config.AuditSync
	cfg.AuditSink = config.SinkStore

	app, err := bootstrap.New(ctx, cfg, newLogger(os.Stderr, cfg))
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return logging.New(w, cfg.LogLevel, cfg.LogFormat)
}
