package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/txengine/internal/audit"
	"github.com/ruralpay/txengine/internal/config"
	"github.com/ruralpay/txengine/internal/csvio"
	"github.com/ruralpay/txengine/internal/database"
	"github.com/ruralpay/txengine/internal/logger"
	"github.com/ruralpay/txengine/internal/models"
	"github.com/ruralpay/txengine/internal/services"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const version = "1.0.0"

const usage = `txengine replays a CSV stream of deposits, withdrawals and disputes
and prints the resulting client accounts.

Usage:
  txengine [flags] <transactions.csv> > accounts.csv
  txengine --issue-token <subject>

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("txengine", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.String("locked-policy", "reject-funding", "What locked accounts accept: reject-funding, freeze or allow")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "json", "Log format: json or console")
	flags.String("format", "csv", "Output format: csv or json")
	flags.Bool("export-postgres", false, "Also write the final snapshots to Postgres")
	flags.Bool("export-redis", false, "Also write the final snapshots to Redis")
	flags.String("env-file", ".env", "Optional .env file with configuration")
	issueToken := flags.String("issue-token", "", "Print an API bearer token for this subject and exit")
	versionFlag := flags.Bool("version", false, "Print version and exit")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if *versionFlag {
		fmt.Fprintf(stdout, "txengine v%s\n", version)
		return 0
	}
	if *issueToken == "" && flags.NArg() != 1 {
		fmt.Fprintln(stderr, "expected exactly one argument: the transactions CSV file")
		flags.Usage()
		return 2
	}

	v := viper.GetViper()
	envFile, _ := flags.GetString("env-file")
	if err := config.Init(v, envFile); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	for key, flag := range map[string]string{
		"ledger.locked_policy": "locked-policy",
		"log.level":            "log-level",
		"log.format":           "log-format",
		"output.format":        "format",
		"export.postgres":      "export-postgres",
		"export.redis":         "export-redis",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	if *issueToken != "" {
		token, err := services.NewTokenService(cfg.JWTSecretKey, cfg.JWTExpiry).Issue(*issueToken)
		if err != nil {
			fmt.Fprintf(stderr, "issue token: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, token)
		return 0
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if err := process(context.Background(), cfg, flags.Arg(0), stdout, log); err != nil {
		log.Error("Run failed", zap.Error(err))
		return 1
	}
	return 0
}

func process(ctx context.Context, cfg *config.Config, path string, stdout io.Writer, log *zap.Logger) error {
	policy, err := services.ParseLockedPolicy(cfg.LockedPolicy)
	if err != nil {
		return err
	}
	format, err := csvio.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening transactions: %w", err)
	}
	defer f.Close()

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	started := time.Now()
	processor := services.NewTransactionService(services.NewAccountLedger(policy), audit.NewAuditLogger(log), runID)
	summary, err := processor.Run(csvio.NewTransactionReader(bufio.NewReader(f)))
	if err != nil {
		return err
	}

	log.Info("Transactions processed",
		zap.String("file", path),
		zap.Int("processed", summary.Processed),
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("malformed", summary.Malformed),
		zap.Int("accounts", processor.Ledger().Len()),
		zap.Duration("elapsed", time.Since(started)),
	)

	out := bufio.NewWriter(stdout)
	w := &csvio.SnapshotWriter{Format: format}
	if err := w.Write(out, processor.Ledger().Snapshot()); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}

	return export(ctx, cfg, runID, processor.Ledger().Snapshots(), log)
}

func export(ctx context.Context, cfg *config.Config, runID string, snapshots []models.Snapshot, log *zap.Logger) error {
	var stores []database.SnapshotStore

	if cfg.ExportPostgres {
		db, err := database.InitDB(log)
		if err != nil {
			return err
		}
		defer db.Close()

		store := database.NewPostgresSnapshotStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		stores = append(stores, store)
	}

	if cfg.ExportRedis {
		rdb, err := database.InitRedis(ctx, log)
		if err != nil {
			return err
		}
		defer rdb.Close()

		stores = append(stores, database.NewRedisSnapshotStore(rdb, cfg.ExportRedisTTL))
	}

	for _, store := range stores {
		if err := store.SaveSnapshots(ctx, runID, snapshots); err != nil {
			return fmt.Errorf("exporting snapshots: %w", err)
		}
	}
	if len(stores) > 0 {
		log.Info("Snapshots exported", zap.Int("stores", len(stores)), zap.Int("accounts", len(snapshots)))
	}
	return nil
}
