package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/facemed/face-med/internal/blob"
	"github.com/facemed/face-med/internal/clinic"
	"github.com/facemed/face-med/internal/config"
	"github.com/facemed/face-med/internal/embedding"
	"github.com/facemed/face-med/internal/faceindex"
	"github.com/facemed/face-med/internal/store/postgres"
	"github.com/facemed/face-med/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face-Med web server.
The server exposes the HTTP API used by the browser front-end: patient
enrollment with a face image, face recognition and medical record access.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && l != zerolog.NoLevel {
		level = l
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// initFaceIndex loads the persisted index when FACE_INDEX_PATH is set and
// the file exists, otherwise rebuilds it from the stored embeddings.
func initFaceIndex(ctx context.Context, cfg *config.Config, st *postgres.Store, logger zerolog.Logger) (*faceindex.Index, error) {
	index := faceindex.New(cfg.Face.MatchThreshold, cfg.Face.TieEpsilon)

	if cfg.Face.IndexPath != "" {
		if err := index.Load(cfg.Face.IndexPath); err != nil {
			logger.Warn().Err(err).
				Str("path", cfg.Face.IndexPath).
				Msg("could not load face index, rebuilding from database")
		} else if index.Count() > 0 {
			logger.Info().
				Int("faces", index.Count()).
				Str("path", cfg.Face.IndexPath).
				Msg("face index loaded")
			return index, nil
		}
	}

	embeddings, err := st.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	entries := make([]faceindex.Entry, 0, len(embeddings))
	for _, emb := range embeddings {
		entries = append(entries, faceindex.Entry{
			PatientID: emb.PatientID,
			Embedding: emb.Embedding,
		})
	}
	index.Rebuild(entries)

	logger.Info().Int("faces", index.Count()).Msg("face index built")
	return index, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	st := postgres.NewStore(pool)

	index, err := initFaceIndex(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	blobs, err := blob.NewStore(cfg.Storage.DataDir, cfg.Storage.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	extractor := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim).
		WithTimeout(cfg.Embedding.Timeout)

	service := clinic.New(st, extractor, blobs, index, logger).
		WithWriteTimeout(cfg.Storage.WriteTimeout)
	server := web.NewServer(cfg, service, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info().Msg("shutting down")

		if cfg.Face.IndexPath != "" {
			if err := index.Save(cfg.Face.IndexPath); err != nil {
				logger.Error().Err(err).Msg("failed to save face index")
			} else {
				logger.Info().Str("path", cfg.Face.IndexPath).Msg("face index saved")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error during shutdown")
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
