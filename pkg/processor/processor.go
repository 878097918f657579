package processor

import (
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/taleweaver/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor cleans story text and cuts it into overlapping chunks at
// sentence boundaries. Case and punctuation are kept since the chunks are
// later split into sentences and shown to the model.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}

		cleanContent := p.cleanText(doc.Content)
		if cleanContent == "" {
			continue
		}

		chunks := p.splitIntoChunks(cleanContent)

		// Short stories still get indexed whole.
		if len(chunks) == 0 {
			chunks = []string{cleanContent}
		}

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

func (p *Processor) cleanText(text string) string {
	// Replace runs of whitespace, newlines included, with single spaces
	return strings.Join(strings.Fields(text), " ")
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	sentences := p.splitIntoSentences(text)

	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		// If adding this sentence would exceed chunk size
		if currentChunk.Len() > 0 && currentChunk.Len()+len(sentence) > p.config.ChunkSize {
			current := strings.TrimSpace(currentChunk.String())
			if len(current) >= p.config.MinChunkLength {
				chunks = append(chunks, current)
			}

			currentChunk.Reset()
			if tail := overlapTail(current, p.config.ChunkOverlap); tail != "" {
				currentChunk.WriteString(tail)
				currentChunk.WriteString(" ")
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	// Add the last chunk if it meets minimum length
	if last := strings.TrimSpace(currentChunk.String()); len(last) >= p.config.MinChunkLength {
		chunks = append(chunks, last)
	}

	return chunks
}

// overlapTail returns roughly the last n bytes of s, starting at a word
// boundary so no word or rune is cut in half.
func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	tail := s[len(s)-n:]
	idx := strings.IndexByte(tail, ' ')
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(tail[idx+1:])
}

func (p *Processor) splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", "\" "}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		// Check for sentence endings
		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	// Add any remaining text
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}
