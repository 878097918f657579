// Package retriever finds the stored story closest to a query and narrows it
// down to the few sentences that best match.
package retriever

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/taleweaver/internal/models"
	"github.com/xhad/taleweaver/internal/types"
)

// WindowSize is the maximum number of sentences returned: the best match plus
// the two that follow it.
const WindowSize = 3

const sentenceDelimiter = ". "

type RetrieverConfig struct {
	Similarity Similarity
}

type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	index    types.VectorIndex
}

func NewWithConfig(config RetrieverConfig, embedder types.Embedder, index types.VectorIndex) *Retriever {
	if config.Similarity == "" {
		config.Similarity = DotProduct
	}

	return &Retriever{
		config:   config,
		embedder: embedder,
		index:    index,
	}
}

// Retrieve embeds the query, fetches the single nearest story and returns the
// best matching sentence with up to two sentences after it.
func (r *Retriever) Retrieve(ctx context.Context, query string) (models.SentenceWindow, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, queryVec, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	if len(matches) == 0 || strings.TrimSpace(matches[0].Content) == "" {
		log.Printf("[retriever] no match for query")
		return models.SentenceWindow{models.NoMatchSnippet}, nil
	}

	sentences := SplitSentences(matches[0].Content)

	sentenceVecs, err := r.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("failed to embed sentences: %w", err)
	}

	scores := make([]float64, len(sentenceVecs))
	for i, v := range sentenceVecs {
		scores[i] = r.config.Similarity.Score(queryVec, v)
	}

	best := Argmax(scores)
	log.Printf("[retriever] matched story %s, sentence %d of %d", matches[0].ID, best+1, len(sentences))

	return SelectWindow(sentences, best), nil
}

// SplitSentences cuts text on the literal ". " delimiter. The period taken by
// the cut is put back so every sentence reads whole. Abbreviations, decimals
// and quoted dialogue are split wrongly; callers accept that.
func SplitSentences(text string) []string {
	parts := strings.Split(text, sentenceDelimiter)

	sentences := make([]string, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if i < len(parts)-1 {
			p += "."
		}
		sentences = append(sentences, p)
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

// Argmax returns the index of the highest score, preferring the lowest index
// on ties. It returns 0 for an empty slice.
func Argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// SelectWindow returns sentences[start:start+WindowSize], clipped to the
// slice bounds.
func SelectWindow(sentences []string, start int) models.SentenceWindow {
	if len(sentences) == 0 {
		return models.SentenceWindow{models.NoMatchSnippet}
	}
	if start < 0 {
		start = 0
	}
	if start >= len(sentences) {
		start = len(sentences) - 1
	}

	end := start + WindowSize
	if end > len(sentences) {
		end = len(sentences)
	}

	window := make(models.SentenceWindow, end-start)
	copy(window, sentences[start:end])
	return window
}
