package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/openwearables/zeppsync/internal/collector"
	"github.com/openwearables/zeppsync/internal/config"
	"github.com/openwearables/zeppsync/internal/sink"
	"github.com/openwearables/zeppsync/internal/zepp"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	logger := slog.Default().With("run_id", uuid.NewString())
	logger.Info("zeppsync starting", "query_days", cfg.QueryDays)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	session, err := zepp.NewAuthClient(logger).Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		logger.Error("login failed", "error", err)
		os.Exit(1)
	}

	api := zepp.NewClient(session, logger)
	result, err := collector.New(api, cfg.QueryDays, logger).Run(ctx)
	if err != nil {
		logger.Error("collection failed", "error", err)
		os.Exit(1)
	}
	logger.Info("collection complete", "records", len(result.Records), "serial", result.Serial)

	writer := sink.New(cfg.SinkURL, cfg.SinkToken, cfg.SinkOrg, cfg.SinkBucket, cfg.SinkMeasurement, logger)
	err = writer.Write(ctx, result.Records, result.Serial)
	writer.Close()
	if err != nil {
		logger.Error("sink write failed", "error", err)
		os.Exit(1)
	}

	logger.Info("zeppsync finished")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
