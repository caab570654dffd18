package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clipper/internal/ai"
	"clipper/internal/domain"
	"clipper/internal/infra"
	"clipper/internal/keypool"
	"clipper/internal/media"
	"clipper/internal/pipeline"
	"clipper/internal/provision"
	"clipper/internal/storage"
	"clipper/internal/store"
	"clipper/internal/transcript"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	if err := store.EnsureSchema(ctx, runner); err != nil {
		logger.Fatal().Err(err).Msg("worker: ensure schema")
	}
	tasks := store.NewTaskStore(runner)
	artifacts := store.NewArtifactStore(runner)
	credentials := store.NewCredentialStore(runner)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	// Transcript credentials live in the database. An empty pool is fine
	// at startup; the provisioner mints an account on first demand.
	transcriptCreds, err := credentials.ActiveForService(ctx, domain.ServiceTranscript)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: load transcript credentials")
	}
	transcriptPool := keypool.New(domain.ServiceTranscript, transcriptCreds, credentials, logger)

	provisioner := provision.New(provision.Options{
		BaseURL:    cfg.TranscriptBaseURL,
		HTTPClient: httpClient,
		Primary: provision.NewTempMailClient(provision.TempMailOptions{
			BaseURL:    cfg.MailboxBaseURL,
			Token:      cfg.MailboxToken,
			Domains:    cfg.MailboxDomains,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Secondary: provision.NewTagInboxClient(provision.TagInboxOptions{
			BaseURL:    cfg.InboxBaseURL,
			APIKey:     cfg.InboxAPIKey,
			Namespace:  cfg.InboxNamespace,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Store:  credentials,
		Logger: logger,
	})

	transcriptClient := transcript.NewClient(transcript.Options{
		BaseURL:     cfg.TranscriptBaseURL,
		HTTPClient:  httpClient,
		Pool:        transcriptPool,
		Provisioner: provisioner,
		Logger:      logger,
	})

	// Analysis keys come from the environment plus any rows already in
	// the database.
	analysisCreds, err := domain.ParseCredentialList(cfg.AnalysisKeysJSON, domain.ServiceAnalysis)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: parse analysis keys")
	}
	storedAnalysisCreds, err := credentials.ActiveForService(ctx, domain.ServiceAnalysis)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: load analysis credentials")
	}
	analysisPool := keypool.New(domain.ServiceAnalysis, append(analysisCreds, storedAnalysisCreds...), credentials, logger)

	chain := ai.NewChain(ai.ChainOptions{
		Pool: analysisPool,
		Primary: ai.NewGeminiClient(ai.GeminiOptions{
			BaseURL:    cfg.AnalysisBaseURL,
			Model:      cfg.AnalysisModel,
			HTTPClient: httpClient,
		}),
		Secondary: ai.NewSecondaryClient(ai.SecondaryOptions{
			BaseURL:    cfg.SecondaryBaseURL,
			Model:      cfg.SecondaryModel,
			Token:      cfg.SecondaryToken,
			HTTPClient: httpClient,
		}),
		Logger: logger,
	})

	objects, err := buildObjectStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: configure storage")
	}

	processor := pipeline.NewProcessor(pipeline.Options{
		Tasks:       tasks,
		Artifacts:   artifacts,
		Transcripts: transcriptClient,
		Analysis:    chain,
		Downloader:  media.NewDownloader(media.DownloaderOptions{CookiesFile: cfg.CookiesFile, Logger: logger}),
		Cutter:      media.NewCutter(media.CutterOptions{Logger: logger}),
		Objects:     objects,
		WorkDir:     cfg.WorkDir,
		WorkerCount: cfg.WorkerCount,
		TaskLimit:   cfg.TaskLimit,
		Logger:      logger,
	})

	logger.Info().Int("workers", cfg.WorkerCount).Int("task_limit", cfg.TaskLimit).Msg("worker: started")
	stats := processor.Run(ctx)
	logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("worker: stopped")
}

func buildObjectStore(cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, error) {
	if cfg.StorageDriver == "http" {
		return storage.NewHTTPStore(storage.HTTPStoreOptions{
			Endpoint: cfg.StorageEndpoint,
			BaseURL:  cfg.StorageBaseURL,
			Token:    cfg.StorageToken,
			Logger:   logger,
		})
	}
	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	return storage.NewFileStore(storagePath, cfg.StorageBaseURL)
}
