package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facemed/face-med/internal/config"
	"github.com/facemed/face-med/internal/faceindex"
	"github.com/facemed/face-med/internal/store/postgres"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the face index from the database",
	Long: `Rebuild the face search index from the embeddings stored in PostgreSQL
and persist it to the path given by --output or FACE_INDEX_PATH.
Use this after restoring a database backup or changing the match threshold.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().String("output", "", "Path to write the index to (overrides FACE_INDEX_PATH)")
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	output := mustGetString(cmd, "output")
	if output == "" {
		output = cfg.Face.IndexPath
	}
	if output == "" {
		return errors.New("no output path: pass --output or set FACE_INDEX_PATH")
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
	st := postgres.NewStore(pool)

	embeddings, err := st.AllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}

	bar := progressbar.Default(int64(len(embeddings)), "indexing faces")
	index := faceindex.New(cfg.Face.MatchThreshold, cfg.Face.TieEpsilon)
	for _, emb := range embeddings {
		index.Add(emb.PatientID, emb.Embedding)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if err := index.Save(output); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	fmt.Printf("Indexed %d faces to %s\n", index.Count(), output)
	return nil
}
