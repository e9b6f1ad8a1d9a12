package vectorsearch

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a deterministic vector per text: the count of each of
// a small fixed vocabulary's words, so cosine similarity behaves predictably
// in tests without a real embedding service.
type stubEmbedder struct{}

var vocab = []string{"cat", "dog", "rocket", "orbit"}

func vectorize(text string) []float64 {
	lower := strings.ToLower(text)
	vec := make([]float64, len(vocab))
	for i, w := range vocab {
		vec[i] = float64(strings.Count(lower, w))
	}
	return vec
}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = vectorize(t)
	}
	return out, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), stubEmbedder{}, NewDiskPersister(filepath.Join(t.TempDir(), "index.json")))
	require.NoError(t, err)
	return s
}

func TestChunkText_SplitsWithOverlap(t *testing.T) {
	text := strings.Repeat("a", 1500)
	chunks := chunkText(text, ChunkPolicy{MaxChunkSizeTokens: 1000, ChunkOverlapTokens: 200})
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 700)
}

func TestChunkText_EmptyYieldsNoChunks(t *testing.T) {
	assert.Empty(t, chunkText("   ", Default()))
}

func TestStore_IndexAndSearchRanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Index(ctx, "vs1", "file-cat", "cats.txt", strings.NewReader("the cat sat on the mat"), Default()))
	require.NoError(t, s.Index(ctx, "vs1", "file-rocket", "rockets.txt", strings.NewReader("the rocket reached orbit"), Default()))

	results, err := s.Search(ctx, "vs1", "rocket orbit", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "the rocket reached orbit", results[0].Text)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestStore_SearchRespectsTopK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Index(ctx, "vs1", "f1", "a.txt", strings.NewReader("cat dog"), Default()))
	require.NoError(t, s.Index(ctx, "vs1", "f2", "b.txt", strings.NewReader("cat"), Default()))

	results, err := s.Search(ctx, "vs1", "cat", 1, "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_FilterExcludesNonMatchingFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Index(ctx, "vs1", "f1", "cats.txt", strings.NewReader("cat"), Default()))
	require.NoError(t, s.Index(ctx, "vs1", "f2", "dogs.txt", strings.NewReader("cat"), Default()))

	results, err := s.Search(ctx, "vs1", "cat", 5, `{"key":"filename","op":"eq","value":"dogs.txt"}`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dogs.txt", results[0].Metadata["filename"])
}

func TestStore_DeleteRemovesFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Index(ctx, "vs1", "f1", "cats.txt", strings.NewReader("cat"), Default()))

	require.NoError(t, s.Delete(ctx, "vs1", "f1"))
	_, ok := s.GetMetadata("vs1", "f1")
	assert.False(t, ok)

	results, err := s.Search(ctx, "vs1", "cat", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_DeleteUnknownFileIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Delete(context.Background(), "vs1", "nope")
	assert.Error(t, err)
}

func TestStore_GetMetadataReturnsChunkCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Index(ctx, "vs1", "f1", "cats.txt", strings.NewReader(strings.Repeat("cat ", 500)), Default()))

	meta, ok := s.GetMetadata("vs1", "f1")
	require.True(t, ok)
	assert.Equal(t, "cats.txt", meta["filename"])
	assert.Greater(t, meta["chunk_count"], 0)
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()

	s1, err := New(ctx, stubEmbedder{}, NewDiskPersister(path))
	require.NoError(t, err)
	require.NoError(t, s1.Index(ctx, "vs1", "f1", "cats.txt", strings.NewReader("cat"), Default()))

	s2, err := New(ctx, stubEmbedder{}, NewDiskPersister(path))
	require.NoError(t, err)
	meta, ok := s2.GetMetadata("vs1", "f1")
	require.True(t, ok)
	assert.Equal(t, "cats.txt", meta["filename"])
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	v := []float64{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_MismatchedLengthsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
}
