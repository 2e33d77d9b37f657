package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/holmes-py/JS-DeepLens/internal/logger"
	"github.com/holmes-py/JS-DeepLens/internal/server"
	"github.com/holmes-py/JS-DeepLens/internal/service"
	"github.com/rs/zerolog"
)

func main() {
	fmt.Println("JS-DeepLens starting...")
	flags := ParseFlags()

	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile, bootLogger)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
	}

	if flags.ProjectName != "" {
		gCfg.ProjectConfig.Name = config.SanitizeProjectName(flags.ProjectName)
	}
	if flags.ListenAddress != "" {
		gCfg.ServerConfig.ListenAddress = flags.ListenAddress
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not initialize logger: %v", err)
	}

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Fatal().Err(err).Msg("Configuration validation failed")
	}
	zLogger.Info().Str("project", gCfg.ProjectConfig.Name).Str("root", gCfg.ProjectConfig.RootDir()).Msg("Configuration validated successfully.")

	if err := run(gCfg, flags, zLogger); err != nil {
		zLogger.Fatal().Err(err).Msg("JS-DeepLens stopped with error")
	}
	zLogger.Info().Msg("JS-DeepLens stopped.")
}

func run(gCfg *config.GlobalConfig, flags AppFlags, zLogger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, gCfg, zLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			zLogger.Error().Err(err).Msg("Failed to close service cleanly")
		}
	}()

	if flags.ExportFile != "" {
		result, err := svc.ExportFindings(ctx, flags.ExportFile)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d findings to %s (%d bytes)\n", result.RecordsWritten, result.FilePath, result.FileSize)
		return nil
	}

	srv := server.New(gCfg.ServerConfig, svc, zLogger)
	zLogger.Info().Str("address", gCfg.ServerConfig.ListenAddress).Msg("Dashboard and ingestion API available")
	return srv.Run(ctx)
}
