package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/vectorstore"
	"rag-pipeline/internal/vectorstore/mocks"
)

const testDim = 64

// stubEmbedder wraps the hashing embedder so tests can count calls and inject failures.
type stubEmbedder struct {
	mu     sync.Mutex
	inner  *llm.HashEmbedder
	calls  int
	err    error
	dim    int
	drop   bool
	lastIn []string
}

func newStubEmbedder(t *testing.T) *stubEmbedder {
	t.Helper()
	inner, err := llm.NewHashEmbedder(testDim)
	if err != nil {
		t.Fatalf("NewHashEmbedder() error = %v", err)
	}
	return &stubEmbedder{inner: inner}
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.lastIn = texts
	err, dim, drop := s.err, s.dim, s.drop
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	vecs, err := s.inner.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if drop {
		vecs = vecs[:len(vecs)-1]
	}
	if dim > 0 {
		for i := range vecs {
			vecs[i] = make([]float32, dim)
		}
	}
	return vecs, nil
}

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestEngine(t *testing.T) (Engine, *stubEmbedder, *vectorstore.FlatIndex) {
	t.Helper()
	emb := newStubEmbedder(t)
	idx, err := vectorstore.NewFlatIndex(testDim)
	if err != nil {
		t.Fatalf("NewFlatIndex() error = %v", err)
	}
	return NewEngine(emb, idx), emb, idx
}

func mustAdd(t *testing.T, engine Engine, filename string, chunks ...string) Document {
	t.Helper()
	doc, err := engine.AddDocument(context.Background(), filename, chunks)
	if err != nil {
		t.Fatalf("AddDocument(%s) error = %v", filename, err)
	}
	return doc
}

func mustSearch(t *testing.T, engine Engine, query string, topK int) []Result {
	t.Helper()
	results, err := engine.Search(context.Background(), query, topK)
	if err != nil {
		t.Fatalf("Search(%q) error = %v", query, err)
	}
	return results
}

func TestEngine_AddDocument(t *testing.T) {
	engine, emb, idx := newTestEngine(t)

	doc := mustAdd(t, engine, "a.txt", "first chunk", "second chunk", "third chunk")

	if doc.DocumentID == "" {
		t.Error("DocumentID is empty")
	}
	if doc.Filename != "a.txt" || doc.ChunkCount != 3 || doc.Start != 0 {
		t.Errorf("AddDocument() = %+v", doc)
	}
	if len(doc.Chunks) != 3 {
		t.Fatalf("len(Chunks) = %d, want 3", len(doc.Chunks))
	}
	for i, c := range doc.Chunks {
		if c.ChunkID != i || c.DocumentID != doc.DocumentID || c.Filename != "a.txt" || c.CreatedAt.IsZero() {
			t.Errorf("Chunks[%d] = %+v", i, c)
		}
	}
	if emb.callCount() != 1 {
		t.Errorf("embedder calls = %d, want 1 batch", emb.callCount())
	}
	if idx.Len() != 3 {
		t.Errorf("index Len() = %d, want 3", idx.Len())
	}

	doc2 := mustAdd(t, engine, "b.txt", "x", "y")
	if doc2.Start != 3 {
		t.Errorf("second document Start = %d, want 3", doc2.Start)
	}
	if doc2.DocumentID == doc.DocumentID {
		t.Error("document ids should be unique")
	}

	if got, want := engine.Stats(), (Stats{IndexSize: 5, LiveChunks: 5, Documents: 2}); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestEngine_AddDocument_NoChunks(t *testing.T) {
	engine, emb, idx := newTestEngine(t)

	doc := mustAdd(t, engine, "empty.txt")

	if doc.DocumentID == "" || doc.ChunkCount != 0 || doc.Start != -1 {
		t.Errorf("AddDocument() = %+v", doc)
	}
	if emb.callCount() != 0 || idx.Len() != 0 {
		t.Errorf("embedder calls = %d, index Len() = %d, want 0 and 0", emb.callCount(), idx.Len())
	}
}

func TestEngine_AddDocument_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*stubEmbedder)
		wantErr error
	}{
		{
			name:    "embedder error",
			setup:   func(s *stubEmbedder) { s.err = errors.New("model unavailable") },
			wantErr: ErrEmbedding,
		},
		{
			name:    "short batch",
			setup:   func(s *stubEmbedder) { s.drop = true },
			wantErr: ErrEmbedding,
		},
		{
			name:    "wrong dimension",
			setup:   func(s *stubEmbedder) { s.dim = testDim + 1 },
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, emb, idx := newTestEngine(t)
			tt.setup(emb)

			_, err := engine.AddDocument(context.Background(), "a.txt", []string{"one", "two"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddDocument() error = %v, want %v", err, tt.wantErr)
			}
			if idx.Len() != 0 {
				t.Errorf("index Len() = %d, want 0", idx.Len())
			}
			if got := engine.Stats(); got != (Stats{}) {
				t.Errorf("Stats() = %+v, want zero", got)
			}
		})
	}
}

func TestEngine_AddDocument_AppendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	index := mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Len().Return(0).AnyTimes()
	index.EXPECT().Dimension().Return(testDim).AnyTimes()
	index.EXPECT().Append(gomock.Any(), gomock.Len(2)).Return(0, errors.New("disk full"))

	engine := NewEngine(newStubEmbedder(t), index)

	_, err := engine.AddDocument(context.Background(), "a.txt", []string{"one", "two"})
	if !errors.Is(err, ErrIndex) {
		t.Fatalf("AddDocument() error = %v, want ErrIndex", err)
	}
	if engine.Stats().LiveChunks != 0 {
		t.Errorf("LiveChunks = %d, want 0", engine.Stats().LiveChunks)
	}
}

func TestEngine_Search_EmptyIndex(t *testing.T) {
	engine, emb, _ := newTestEngine(t)

	results := mustSearch(t, engine, "anything", 5)

	if results == nil || len(results) != 0 {
		t.Errorf("Search() = %v, want an empty non-nil slice", results)
	}
	if emb.callCount() != 0 {
		t.Errorf("embedder calls = %d, want 0 on an empty index", emb.callCount())
	}
}

func TestEngine_Search_InvalidTopK(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.Search(context.Background(), "q", 0); err == nil {
		t.Error("Search() with top_k=0 should return error")
	}
}

func TestEngine_Search_ExactMatchIsClosest(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	doc := mustAdd(t, engine, "facts.txt",
		"the mitochondria is the powerhouse of the cell",
		"paris is the capital of france",
		"go channels communicate between goroutines",
	)

	results := mustSearch(t, engine, "paris is the capital of france", 3)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	top := results[0]
	if top.Chunk.ChunkID != 1 || top.Chunk.DocumentID != doc.DocumentID || top.Position != 1 {
		t.Errorf("top result = %+v, want chunk 1 at position 1", top)
	}
	if math.Abs(float64(top.Score)) > 1e-6 {
		t.Errorf("top score = %v, want ~0", top.Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score > results[i].Score {
			t.Errorf("results not ordered closest first: %v > %v", results[i-1].Score, results[i].Score)
		}
	}
}

func TestEngine_Search_TopKLargerThanIndex(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	mustAdd(t, engine, "a.txt", "alpha", "beta")

	if results := mustSearch(t, engine, "alpha", 50); len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestEngine_DeleteDocument(t *testing.T) {
	engine, _, idx := newTestEngine(t)
	ctx := context.Background()

	keep := mustAdd(t, engine, "keep.txt", "shared words about cats", "cats again")
	gone := mustAdd(t, engine, "gone.txt", "shared words about cats too", "more cats")

	if removed := engine.DeleteDocument(ctx, gone.DocumentID); removed != 2 {
		t.Errorf("DeleteDocument() = %d, want 2", removed)
	}
	if idx.Len() != 4 {
		t.Errorf("index Len() = %d, want 4: vectors are not reclaimed", idx.Len())
	}
	if got, want := engine.Stats(), (Stats{IndexSize: 4, LiveChunks: 2, Documents: 1}); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	results := mustSearch(t, engine, "shared words about cats too", 4)
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2: hits on deleted positions are dropped", len(results))
	}
	for _, r := range results {
		if r.Chunk.DocumentID != keep.DocumentID {
			t.Errorf("result from %s, want only %s", r.Chunk.DocumentID, keep.DocumentID)
		}
	}
}

func TestEngine_DeleteDocument_Unknown(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	mustAdd(t, engine, "a.txt", "x")
	before := engine.Stats()

	if removed := engine.DeleteDocument(context.Background(), "nonexistent"); removed != 0 {
		t.Errorf("DeleteDocument() = %d, want 0", removed)
	}
	if after := engine.Stats(); after != before {
		t.Errorf("Stats() = %+v, want unchanged %+v", after, before)
	}
}

func TestEngine_CapitalOfFrance(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	mustAdd(t, engine, "france.txt", "The capital of France is Paris.")

	results := mustSearch(t, engine, "What is the capital of France?", 3)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Chunk.Filename != "france.txt" {
		t.Errorf("Filename = %q, want france.txt", results[0].Chunk.Filename)
	}

	answer := Synthesize("What is the capital of France?", []Chunk{results[0].Chunk})
	if answer != "The capital of France is Paris." {
		t.Errorf("answer = %q", answer)
	}
}

func TestEngine_ConcurrentAddDocument(t *testing.T) {
	engine, _, idx := newTestEngine(t)
	ctx := context.Background()

	const docs = 20
	var wg sync.WaitGroup
	results := make([]Document, docs)
	errs := make(chan error, docs+5)
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := engine.AddDocument(ctx, fmt.Sprintf("doc-%d.txt", i), []string{
				fmt.Sprintf("doc %d chunk zero", i),
				fmt.Sprintf("doc %d chunk one", i),
				fmt.Sprintf("doc %d chunk two", i),
			})
			if err != nil {
				errs <- err
			}
			results[i] = doc
		}(i)
	}

	// Readers run alongside writers.
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Search(ctx, "chunk one", 5); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call error = %v", err)
	}

	if idx.Len() != docs*3 || engine.Stats().LiveChunks != docs*3 {
		t.Errorf("index Len() = %d, LiveChunks = %d, want %d", idx.Len(), engine.Stats().LiveChunks, docs*3)
	}

	taken := make(map[int]string)
	for _, doc := range results {
		for i := range doc.ChunkCount {
			pos := doc.Start + i
			if owner, dup := taken[pos]; dup {
				t.Fatalf("position %d claimed by %s and %s", pos, owner, doc.DocumentID)
			}
			taken[pos] = doc.DocumentID
		}
	}
}

func TestEngine_ConcurrentDeleteAndSearch(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for i := range 10 {
		ids = append(ids, mustAdd(t, engine, "f.txt", strings.Repeat("word ", i+1)).DocumentID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			engine.DeleteDocument(ctx, id)
		}(id)
		go func() {
			defer wg.Done()
			if _, err := engine.Search(ctx, "word", 10); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Search() error = %v", err)
	}

	if engine.Stats().LiveChunks != 0 {
		t.Errorf("LiveChunks = %d, want 0", engine.Stats().LiveChunks)
	}
	if results := mustSearch(t, engine, "word", 10); len(results) != 0 {
		t.Errorf("Search() after deleting everything = %v, want none", results)
	}
}

func TestEngine_Restore(t *testing.T) {
	engine, _, idx := newTestEngine(t)
	ctx := context.Background()

	stored := []Chunk{
		{Text: "restored zero", ChunkID: 0, Filename: "r.txt", DocumentID: "doc-r"},
		{Text: "restored one", ChunkID: 1, Filename: "r.txt", DocumentID: "doc-r"},
	}
	start, err := engine.Restore(ctx, stored)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if start != 0 || idx.Len() != 2 {
		t.Errorf("Restore() start = %d, index Len() = %d, want 0 and 2", start, idx.Len())
	}

	results := mustSearch(t, engine, "restored one", 1)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if c := results[0].Chunk; c.DocumentID != "doc-r" || c.ChunkID != 1 {
		t.Errorf("top chunk = %+v, want doc-r chunk 1", c)
	}

	start, err = engine.Restore(ctx, nil)
	if err != nil || start != -1 {
		t.Errorf("Restore(nil) = %d, %v, want -1, nil", start, err)
	}
}

func TestEngine_LoadRegistry(t *testing.T) {
	emb := newStubEmbedder(t)
	idx, err := vectorstore.NewFlatIndex(testDim)
	if err != nil {
		t.Fatalf("NewFlatIndex() error = %v", err)
	}
	ctx := context.Background()

	// Simulate a persistent index that already holds three vectors.
	vecs, err := emb.EmbedTexts(ctx, []string{"kept zero", "deleted", "kept two"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if _, err := idx.Append(ctx, vecs); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	engine := NewEngine(emb, idx)
	if got := engine.Stats(); got != (Stats{IndexSize: 3}) {
		t.Errorf("Stats() = %+v, want IndexSize 3 only", got)
	}

	err = engine.LoadRegistry(ctx, []Placement{
		{Position: 0, Chunk: Chunk{Text: "kept zero", DocumentID: "d", ChunkID: 0}},
		{Position: 2, Chunk: Chunk{Text: "kept two", DocumentID: "d", ChunkID: 1}},
	})
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if got, want := engine.Stats(), (Stats{IndexSize: 3, LiveChunks: 2, Documents: 1}); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	if results := mustSearch(t, engine, "deleted", 3); len(results) != 2 {
		t.Errorf("len(results) = %d, want 2: position 1 has no registry entry", len(results))
	}

	// New documents land after the existing vectors.
	if doc := mustAdd(t, engine, "new.txt", "fresh"); doc.Start != 3 {
		t.Errorf("Start = %d, want 3", doc.Start)
	}
}

func TestEngine_LoadRegistry_Invalid(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	mustAdd(t, engine, "a.txt", "x")

	if err := engine.LoadRegistry(ctx, []Placement{{Position: 5, Chunk: Chunk{DocumentID: "d"}}}); err == nil {
		t.Error("LoadRegistry() past the end of the index should fail")
	}
	if err := engine.LoadRegistry(ctx, []Placement{{Position: 0, Chunk: Chunk{DocumentID: "d"}}}); err == nil {
		t.Error("LoadRegistry() on a registered position should fail")
	}
	if engine.Stats().LiveChunks != 1 {
		t.Errorf("LiveChunks = %d, want 1", engine.Stats().LiveChunks)
	}
}
