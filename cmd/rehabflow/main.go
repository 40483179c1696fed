package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"alcyxob/rehabflow/internal/config"
	"alcyxob/rehabflow/internal/llm"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/repository"
	"alcyxob/rehabflow/internal/repository/file"
	"alcyxob/rehabflow/internal/repository/mongo"
	"alcyxob/rehabflow/internal/service"
	"alcyxob/rehabflow/internal/storage"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "rehabflow",
		Short:         "Physiotherapy follow-up with generated exercise routines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(patientsCmd(&configPath))
	rootCmd.AddCommand(sessionCmd(&configPath))
	rootCmd.AddCommand(historyCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is the wiring shared by every command.
type app struct {
	cfg       config.Config
	log       *logger.Logger
	records   *service.RecordStore
	presigner repository.Presigner
	cleanup   []func()
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.records = service.NewRecordStore(repo, cfg.Store.Slot, log)
	if err := a.records.Open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if w := a.records.TakeWarning(); w != "" {
		fmt.Fprintln(os.Stderr, "Aviso:", w)
	}
	return a, nil
}

// openRepository connects the configured snapshot backend.
func (a *app) openRepository(ctx context.Context) (repository.SnapshotRepository, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMongo:
		client, err := mongo.ConnectDB(ctx, a.cfg.Database.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.cleanup = append(a.cleanup, func() {
			if err := mongo.DisconnectDB(client); err != nil {
				a.log.Error("failed to disconnect MongoDB", "error", err)
			}
		})
		db := client.Database(a.cfg.Database.Name)
		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := mongo.EnsureSnapshotIndexes(indexCtx, db); err != nil {
			a.log.Warn("failed to create snapshot indexes", "error", err)
		}
		a.log.Info("using mongo snapshot backend", "database", a.cfg.Database.Name)
		return mongo.NewMongoSnapshotRepository(db), nil

	case config.BackendS3:
		s3Storage, err := storage.NewS3Storage(ctx, a.cfg.S3, a.log)
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		a.presigner = s3Storage
		a.log.Info("using s3 snapshot backend", "bucket", a.cfg.S3.BucketName)
		return s3Storage, nil

	default:
		repo, err := file.NewFileSnapshotRepository(a.cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		a.log.Info("using file snapshot backend", "dir", a.cfg.Store.Dir)
		return repo, nil
	}
}

func (a *app) newOrchestrator() (*service.SessionOrchestrator, error) {
	generator, err := llm.NewOpenAIGenerator(a.cfg.Generation, a.log)
	if err != nil {
		return nil, err
	}
	// The generator applies the per-attempt timeout itself.
	return service.NewSessionOrchestrator(a.records, generator, 0, a.log), nil
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.log.Sync()
}
