// Command statsrefresh recomputes the per-constituency precomputed stats
// documents from the live partitions. It is the out-of-band half of the
// analytics cache: dashboards read the documents it writes, falling back to
// live aggregation only when a document is stale or missing.
//
// Run it one-shot from cron, or with --interval to loop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/abhiyaanhq/abhiyaan/shard"
	shardmongo "github.com/abhiyaanhq/abhiyaan/shard/mongo"
	"github.com/abhiyaanhq/abhiyaan/stats"
)

type config struct {
	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`
}

func loadConfig() (*config, error) {
	// .env is for local development only.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "abhiyaan")
	for _, k := range []string{"MONGO_URI", "MONGO_DB"} {
		_ = v.BindEnv(k)
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func main() {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:          "statsrefresh",
		Short:        "Recompute per-constituency precomputed stats documents",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0,
		"refresh repeatedly at this interval (default: one-shot)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, interval time.Duration) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := mongod.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("disconnect failed", "err", err)
		}
	}()

	db := client.Database(cfg.MongoDB)
	agg := shard.NewAggregator(shard.NewRouter(shardmongo.New(db)), logger)
	mat := stats.NewMaterializer(agg, stats.NewMongoStore(db),
		stats.WithMaterializerLogger(logger),
	)

	refresh := func() {
		start := time.Now()
		if err := mat.RefreshAll(ctx); err != nil {
			logger.Error("refresh pass finished with errors", "err", err)
			return
		}
		logger.Info("refresh pass complete", "took", time.Since(start))
	}

	refresh()
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}
