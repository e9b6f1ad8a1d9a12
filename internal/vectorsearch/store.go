package vectorsearch

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/tools"
)

// entry is one indexed chunk, the on-disk shape of spec §3's
// VectorIndexEntry{file_id, chunk_id, content, embedding, metadata}.
type entry struct {
	FileID    string         `json:"file_id"`
	ChunkID   string         `json:"chunk_id"`
	Content   string         `json:"content"`
	Embedding []float64      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// fileRecord tracks per-file metadata independent of its chunks, so
// GetMetadata works even for a file whose chunks were filtered out of a
// search, and so Delete can report "unknown file" distinctly from "file had
// no chunks".
type fileRecord struct {
	Filename   string         `json:"filename"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ChunkCount int            `json:"chunk_count"`
}

// Store is the Vector Search Tool (spec §4.10): chunk + embed on Index,
// cosine-similarity rank on Search, with every mutation flushed to a
// Persister so the index survives process restarts. Safe for concurrent
// Search; Index/Delete serialise internally via mu, per spec §5's "index/
// delete may serialise internally" allowance.
type Store struct {
	mu        sync.RWMutex
	embedder  Embedder
	persister Persister

	entries map[string][]entry              // storeID -> chunks
	files   map[string]map[string]fileRecord // storeID -> fileID -> record
}

// New builds a Store and eagerly loads its persisted snapshot, so an
// ephemeral-mode restart picks back up where it left off.
func New(ctx context.Context, embedder Embedder, persister Persister) (*Store, error) {
	snap, err := persister.Load(ctx)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInternalError, "failed to load vector index snapshot", err)
	}
	return &Store{
		embedder:  embedder,
		persister: persister,
		entries:   snap.Entries,
		files:     snap.Files,
	}, nil
}

// Index chunks content per policy, embeds every chunk, and stores them under
// storeID/fileID, replacing any prior chunks for that file. A zero-value
// policy uses Default().
func (s *Store) Index(ctx context.Context, storeID, fileID, filename string, content io.Reader, policy ChunkPolicy) error {
	raw, err := io.ReadAll(content)
	if err != nil {
		return apierror.Wrap(apierror.KindToolExecutionError, "failed to read file content for indexing", err)
	}

	chunks := chunkText(string(raw), policy)
	var embeddings [][]float64
	if len(chunks) > 0 {
		embeddings, err = s.embedder.Embed(ctx, chunks)
		if err != nil {
			return apierror.Wrap(apierror.KindToolExecutionError, "embedding service call failed", err)
		}
		if len(embeddings) != len(chunks) {
			return apierror.New(apierror.KindToolExecutionError, "embedding service returned a mismatched vector count")
		}
	}

	newEntries := make([]entry, len(chunks))
	for i, c := range chunks {
		newEntries[i] = entry{
			FileID:    fileID,
			ChunkID:   uuid.NewString(),
			Content:   c,
			Embedding: embeddings[i],
			Metadata:  map[string]any{"filename": filename},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.entries[storeID]
	kept := existing[:0:0]
	for _, e := range existing {
		if e.FileID != fileID {
			kept = append(kept, e)
		}
	}
	s.entries[storeID] = append(kept, newEntries...)

	if s.files[storeID] == nil {
		s.files[storeID] = make(map[string]fileRecord)
	}
	s.files[storeID][fileID] = fileRecord{Filename: filename, ChunkCount: len(newEntries)}

	return s.persistLocked(ctx)
}

// Search embeds query, scores every chunk in storeID by cosine similarity,
// applies filter (a JSON clause or clause array per spec §4.10), and returns
// the topK highest-scoring matches. Safe for concurrent use.
func (s *Store) Search(ctx context.Context, storeID, query string, topK int, filter string) ([]tools.SearchResult, error) {
	clauses, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}

	queryVec, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apierror.Wrap(apierror.KindToolExecutionError, "embedding service call failed", err)
	}
	if len(queryVec) != 1 {
		return nil, apierror.New(apierror.KindToolExecutionError, "embedding service returned a mismatched vector count")
	}

	s.mu.RLock()
	candidates := s.entries[storeID]
	fileMeta := s.files[storeID]
	snapshot := make([]entry, len(candidates))
	copy(snapshot, candidates)
	s.mu.RUnlock()

	type scored struct {
		entry entry
		score float64
	}
	var results []scored
	for _, e := range snapshot {
		merged := mergeMetadata(e.Metadata, fileMeta[e.FileID])
		ok, err := matches(clauses, merged)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, scored{entry: e, score: cosineSimilarity(queryVec[0], e.Embedding)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	out := make([]tools.SearchResult, len(results))
	for i, r := range results {
		out[i] = tools.SearchResult{
			Text:     r.entry.Content,
			Score:    r.score,
			Metadata: mergeMetadata(r.entry.Metadata, fileMeta[r.entry.FileID]),
		}
	}
	return out, nil
}

// Delete removes every chunk belonging to fileID from storeID.
func (s *Store) Delete(ctx context.Context, storeID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[storeID][fileID]; !ok {
		return apierror.New(apierror.KindNotFound, "file not found in vector store")
	}

	existing := s.entries[storeID]
	kept := existing[:0:0]
	for _, e := range existing {
		if e.FileID != fileID {
			kept = append(kept, e)
		}
	}
	s.entries[storeID] = kept
	delete(s.files[storeID], fileID)

	return s.persistLocked(ctx)
}

// GetMetadata returns the stored metadata for fileID, or ok=false if unknown.
func (s *Store) GetMetadata(storeID, fileID string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[storeID][fileID]
	if !ok {
		return nil, false
	}
	return map[string]any{"filename": rec.Filename, "chunk_count": rec.ChunkCount}, true
}

func (s *Store) persistLocked(ctx context.Context) error {
	snap := &snapshot{Entries: s.entries, Files: s.files}
	if err := s.persister.Save(ctx, snap); err != nil {
		return apierror.Wrap(apierror.KindInternalError, "failed to persist vector index snapshot", err)
	}
	return nil
}

func mergeMetadata(chunkMeta map[string]any, file fileRecord) map[string]any {
	merged := map[string]any{"filename": file.Filename}
	for k, v := range chunkMeta {
		merged[k] = v
	}
	return merged
}

// cosineSimilarity scores two embeddings in [-1, 1], via gonum/floats' Dot
// and Norm rather than hand-rolled loops.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	denom := floats.Norm(a, 2) * floats.Norm(b, 2)
	if denom == 0 {
		return 0
	}
	return floats.Dot(a, b) / denom
}
