package retriever_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/taleweaver/internal/models"
	"github.com/xhad/taleweaver/pkg/retriever"
)

// mockEmbedder returns a fixed vector per text and a zero vector otherwise.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	batches [][]string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batches = append(m.batches, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 0}
		}
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int { return 3 }

type mockIndex struct {
	matches   []models.Match
	err       error
	lastLimit int
}

func (m *mockIndex) Query(_ context.Context, _ []float32, limit int) ([]models.Match, error) {
	m.lastLimit = limit
	return m.matches, m.err
}

func (m *mockIndex) Close() {}

func storyMatch(text string) []models.Match {
	return []models.Match{{Document: models.Document{ID: "story-1", Content: text}, Score: 0.9}}
}

func TestRetrieve_CatExample(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"Where did the cat sleep?": {1, 1, 0},
		"The cat sat.":             {0.5, 0, 0},
		"It was sunny.":            {0, 0, 1},
		"The cat slept.":           {1, 0.9, 0},
		"Birds sang.":              {0, 0.1, 1},
	}}
	idx := &mockIndex{matches: storyMatch("The cat sat. It was sunny. The cat slept. Birds sang.")}

	r := retriever.NewWithConfig(retriever.RetrieverConfig{}, emb, idx)
	window, err := r.Retrieve(context.Background(), "Where did the cat sleep?")
	require.NoError(t, err)

	assert.Equal(t, models.SentenceWindow{"The cat slept.", "Birds sang."}, window)
	assert.Equal(t, 1, idx.lastLimit)
	require.Len(t, emb.batches, 2)
	assert.Len(t, emb.batches[1], 4, "every sentence embedded in one batch")
}

func TestRetrieve_NoMatch(t *testing.T) {
	tests := []struct {
		name    string
		matches []models.Match
	}{
		{"empty result", nil},
		{"empty text", storyMatch("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := retriever.NewWithConfig(retriever.RetrieverConfig{}, &mockEmbedder{}, &mockIndex{matches: tt.matches})
			window, err := r.Retrieve(context.Background(), "anything")
			require.NoError(t, err)
			assert.Equal(t, models.SentenceWindow{"No matching snippet found."}, window)
		})
	}
}

func TestRetrieve_Errors(t *testing.T) {
	boom := errors.New("unavailable")

	r := retriever.NewWithConfig(retriever.RetrieverConfig{}, &mockEmbedder{err: boom}, &mockIndex{})
	_, err := r.Retrieve(context.Background(), "query")
	assert.ErrorIs(t, err, boom)

	r = retriever.NewWithConfig(retriever.RetrieverConfig{}, &mockEmbedder{}, &mockIndex{err: boom})
	_, err = r.Retrieve(context.Background(), "query")
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_TiesPickFirst(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"q":  {1, 0, 0},
		"A.": {1, 0, 0},
		"B.": {1, 0, 0},
		"C.": {1, 0, 0},
		"D.": {1, 0, 0},
		"E":  {1, 0, 0},
	}}
	idx := &mockIndex{matches: storyMatch("A. B. C. D. E")}

	window, err := retriever.NewWithConfig(retriever.RetrieverConfig{}, emb, idx).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, models.SentenceWindow{"A.", "B.", "C."}, window)
}

func TestRetrieve_WindowBounds(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for best := 0; best < n; best++ {
			t.Run(fmt.Sprintf("n=%d best=%d", n, best), func(t *testing.T) {
				vectors := map[string][]float32{"q": {1, 0, 0}}
				text := ""
				for i := 0; i < n; i++ {
					s := fmt.Sprintf("S%d", i)
					if i > 0 {
						text += ". "
					}
					text += s
					key := s
					if i < n-1 {
						key += "."
					}
					if i == best {
						vectors[key] = []float32{1, 0, 0}
					}
				}

				r := retriever.NewWithConfig(retriever.RetrieverConfig{}, &mockEmbedder{vectors: vectors}, &mockIndex{matches: storyMatch(text)})
				window, err := r.Retrieve(context.Background(), "q")
				require.NoError(t, err)

				assert.GreaterOrEqual(t, len(window), 1)
				assert.LessOrEqual(t, len(window), 3)
				assert.LessOrEqual(t, len(window), n)
				assert.Equal(t, min(3, n-best), len(window))
				assert.Contains(t, window[0], fmt.Sprintf("S%d", best))
			})
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"The cat sat. It was sunny.", []string{"The cat sat.", "It was sunny."}},
		{"No delimiter here", []string{"No delimiter here"}},
		{"Dr. Watson arrived. Late.", []string{"Dr.", "Watson arrived.", "Late."}},
		{"It cost 3. 5 coins", []string{"It cost 3.", "5 coins"}},
		{"Ends with delimiter. ", []string{"Ends with delimiter."}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, retriever.SplitSentences(tt.text))
		})
	}
}

func TestSelectWindow(t *testing.T) {
	s := []string{"a", "b", "c", "d"}

	assert.Equal(t, models.SentenceWindow{"a", "b", "c"}, retriever.SelectWindow(s, 0))
	assert.Equal(t, models.SentenceWindow{"c", "d"}, retriever.SelectWindow(s, 2))
	assert.Equal(t, models.SentenceWindow{"d"}, retriever.SelectWindow(s, 3))
	assert.Equal(t, models.SentenceWindow{"d"}, retriever.SelectWindow(s, 10))
	assert.Equal(t, models.SentenceWindow{"No matching snippet found."}, retriever.SelectWindow(nil, 0))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, retriever.Argmax(nil))
	assert.Equal(t, 2, retriever.Argmax([]float64{0.1, 0.2, 0.9, 0.3}))
	assert.Equal(t, 1, retriever.Argmax([]float64{-1, 5, 5}))
}
