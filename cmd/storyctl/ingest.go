package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/taleweaver/internal/app"
	"github.com/xhad/taleweaver/internal/models"
	cfgPkg "github.com/xhad/taleweaver/pkg/config"
	"github.com/xhad/taleweaver/pkg/ingest"
	"github.com/xhad/taleweaver/pkg/scraper"
	"github.com/xhad/taleweaver/pkg/store"
)

var (
	ingestDir string
	ingestURL string
	maxDepth  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index stories from a directory or a website",
	Long: `Reads stories, splits them into overlapping chunks, embeds every chunk
and upserts it into the configured vector index.

Examples:
  storyctl ingest --dir ./stories
  storyctl ingest --url https://example.com/tales/ --max-depth 1`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "Directory of .txt and .md stories")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "Story site to scrape")
	ingestCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Link depth to follow when scraping (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if (ingestDir == "") == (ingestURL == "") {
		return errors.New("exactly one of --dir or --url is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if maxDepth > 0 {
		cfg.Scraper.MaxDepth = maxDepth
	}
	// Ingestion never calls the generator.
	for _, e := range append(cfg.Validate(), cfg.ValidateIngest()...) {
		if !strings.HasPrefix(e.Field, "generator.") {
			return fmt.Errorf("invalid configuration: %w", e)
		}
	}

	ctx := cmd.Context()

	var docs []models.Document
	if ingestDir != "" {
		color.Blue("\nReading stories from %s\n", ingestDir)
		docs, err = ingest.LoadDir(ingestDir)
	} else {
		color.Blue("\nScraping stories from %s\n", ingestURL)
		docs, err = scrapeSite(ctx, cfg, ingestURL)
	}
	if err != nil {
		return err
	}
	color.Green("✓ Found %d stories\n", len(docs))

	embedder, err := app.NewEmbedder(cfg)
	if err != nil {
		return err
	}

	vectorStore, err := store.Open(ctx, app.StoreConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	bars := newStageBars(map[string]string{
		ingest.StageProcess: "🔄 Processing stories...",
		ingest.StageEmbed:   "🧠 Embedding chunks...",
		ingest.StageStore:   "💾 Storing in vector index...",
	})
	pipeline := app.NewIngestPipeline(cfg, embedder, vectorStore, bars.report)

	result, err := pipeline.Run(ctx, docs)
	if err != nil {
		return err
	}

	color.Green("\n✓ Indexed %d stories as %d chunks\n", result.Documents, result.Chunks)
	return nil
}

func scrapeSite(ctx context.Context, cfg *cfgPkg.Config, url string) ([]models.Document, error) {
	var pages int32
	spinner := getSpinner("📄 Scraping story pages...")

	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:           url,
		MaxDepth:          cfg.Scraper.MaxDepth,
		RateLimit:         cfg.Scraper.RateLimit,
		IgnorePatterns:    cfg.Scraper.IgnorePatterns,
		AllowedExtensions: cfg.Scraper.AllowedExtensions,
		OnProgress: func(string) {
			n := atomic.AddInt32(&pages, 1)
			spinner.Describe(color.CyanString("📄 Scraping story pages... (%d)", n))
			spinner.Add(1)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}

	docs, err := s.Scrape(ctx, url)
	spinner.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to scrape stories: %w", err)
	}
	return docs, nil
}
