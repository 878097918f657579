// Package ingest loads stories, cuts them into chunks, embeds every chunk and
// writes the result to the vector index the retriever reads from.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/taleweaver/internal/models"
	"github.com/xhad/taleweaver/internal/types"
	"github.com/xhad/taleweaver/pkg/processor"
)

var ErrNoDocuments = errors.New("no documents to ingest")

// Stage names reported to Progress.
const (
	StageProcess = "process"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// Writer is the part of a vector store the pipeline needs.
type Writer interface {
	Store(ctx context.Context, docs []models.ProcessedDocument) error
}

type Config struct {
	// BatchSize is how many documents go into one Store call.
	BatchSize int
	// EmbedBatchSize caps the chunks sent in one embedding call.
	EmbedBatchSize int
	// Progress is called after each unit of work in a stage.
	Progress func(stage string, done, total int)
}

type Pipeline struct {
	config    Config
	processor processor.Processor
	embedder  types.Embedder
	writer    Writer
}

type Result struct {
	Documents int
	Chunks    int
}

func New(config Config, proc processor.Processor, embedder types.Embedder, writer Writer) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 32
	}
	return &Pipeline{
		config:    config,
		processor: proc,
		embedder:  embedder,
		writer:    writer,
	}
}

func (p *Pipeline) progress(stage string, done, total int) {
	if p.config.Progress != nil {
		p.config.Progress(stage, done, total)
	}
}

// Run processes, embeds and stores docs. Documents that end up with no text
// are skipped.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document) (Result, error) {
	if len(docs) == 0 {
		return Result{}, ErrNoDocuments
	}

	var processed []models.ProcessedDocument
	for i, doc := range docs {
		out, err := p.processor.Process([]models.Document{doc})
		if err != nil {
			return Result{}, fmt.Errorf("failed to process document %s: %w", doc.URL, err)
		}
		processed = append(processed, out...)
		p.progress(StageProcess, i+1, len(docs))
	}
	if len(processed) == 0 {
		return Result{}, ErrNoDocuments
	}

	chunks := 0
	for i := range processed {
		embeddings, err := p.embedChunks(ctx, processed[i].Chunks)
		if err != nil {
			return Result{}, fmt.Errorf("failed to embed document %s: %w", processed[i].ID, err)
		}
		processed[i].Embedding = embeddings
		chunks += len(embeddings)
		p.progress(StageEmbed, i+1, len(processed))
	}

	for i := 0; i < len(processed); i += p.config.BatchSize {
		end := i + p.config.BatchSize
		if end > len(processed) {
			end = len(processed)
		}
		if err := p.writer.Store(ctx, processed[i:end]); err != nil {
			return Result{}, fmt.Errorf("failed to store batch: %w", err)
		}
		p.progress(StageStore, end, len(processed))
	}

	log.Printf("[ingest] stored %d documents as %d chunks", len(processed), chunks)
	return Result{Documents: len(processed), Chunks: chunks}, nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += p.config.EmbedBatchSize {
		end := i + p.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := p.embedder.EmbedBatch(ctx, chunks[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

var storyExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// LoadDir reads every .txt and .md file under dir. A document's id is derived
// from its absolute path so re-ingesting a file overwrites its chunks.
func LoadDir(dir string) ([]models.Document, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !storyExtensions[ext] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		url := "file://" + filepath.ToSlash(path)
		docs = append(docs, models.Document{
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String(),
			URL:     url,
			Title:   titleOf(path, string(data)),
			Content: string(data),
			Metadata: map[string]interface{}{
				"source": "file",
				"format": strings.TrimPrefix(ext, "."),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// titleOf uses a leading markdown heading when there is one, the file name
// otherwise.
func titleOf(path, content string) string {
	if strings.EqualFold(filepath.Ext(path), ".md") {
		for _, line := range strings.Split(content, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "# ") {
				return strings.TrimSpace(line[2:])
			}
			break
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
