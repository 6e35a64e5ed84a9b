package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDocumentRepo_UpsertGet(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	uploaded := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := &DocumentRecord{
		ID:         "doc-1",
		Filename:   "a.txt",
		UploadDate: uploaded,
		ChunkCount: 3,
		Metadata:   json.RawMessage(`{"format":"text","size_bytes":42}`),
	}
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Filename != "a.txt" || got.ChunkCount != 3 || !got.UploadDate.Equal(uploaded) {
		t.Errorf("Get() = %+v, want filename a.txt, 3 chunks, %v", got, uploaded)
	}

	var meta DocumentMetadata
	if err := json.Unmarshal(got.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if meta.Format != "text" || meta.SizeBytes != 42 {
		t.Errorf("metadata = %+v", meta)
	}

	// Upsert replaces the existing row.
	doc.ChunkCount = 7
	doc.Metadata = nil
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	got, err = repo.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ChunkCount != 7 {
		t.Errorf("ChunkCount = %d after upsert, want 7", got.ChunkCount)
	}
	if string(got.Metadata) != "{}" {
		t.Errorf("empty metadata stored as %q, want {}", got.Metadata)
	}
}

func TestDocumentRepo_Get_NotFound(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_List_OrderedByUploadDateDesc(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	docs := []DocumentRecord{
		{ID: "old", Filename: "old.txt", UploadDate: base},
		{ID: "new", Filename: "new.txt", UploadDate: base.Add(2 * time.Hour)},
		{ID: "mid", Filename: "mid.txt", UploadDate: base.Add(time.Hour)},
		{ID: "mid-later-insert", Filename: "mid2.txt", UploadDate: base.Add(time.Hour)},
	}
	for i := range docs {
		if err := repo.Upsert(ctx, &docs[i]); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"new", "mid-later-insert", "mid", "old"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d documents, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestDocumentRepo_List_Empty(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", got)
	}
}

func TestDocumentRepo_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)
	chunks := NewChunkRepo(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &DocumentRecord{ID: "doc-1", Filename: "a.txt", UploadDate: time.Now(), ChunkCount: 2}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := chunks.InsertBatch(ctx, []ChunkRecord{
		{DocumentID: "doc-1", ChunkIndex: 0, Position: 0, Filename: "a.txt", Text: "x", CreatedAt: time.Now()},
		{DocumentID: "doc-1", ChunkIndex: 1, Position: 1, Filename: "a.txt", Text: "y", CreatedAt: time.Now()},
	}); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	deleted, err := repo.Delete(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("Delete() = false, want true")
	}

	remaining, err := chunks.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("chunk rows not cascaded: %d remain", len(remaining))
	}

	deleted, err = repo.Delete(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Delete() of unknown id error = %v", err)
	}
	if deleted {
		t.Error("Delete() of unknown id = true, want false")
	}
}

func TestDocumentRepo_Aggregate(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	totals, err := repo.Aggregate(ctx)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if totals != (Totals{}) {
		t.Errorf("Aggregate() on empty table = %+v, want zeros", totals)
	}

	for i, n := range []int{3, 0, 5} {
		doc := &DocumentRecord{ID: string(rune('a' + i)), Filename: "f", UploadDate: time.Now(), ChunkCount: n}
		if err := repo.Upsert(ctx, doc); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	totals, err = repo.Aggregate(ctx)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if totals.Documents != 3 || totals.Chunks != 8 {
		t.Errorf("Aggregate() = %+v, want 3 documents and 8 chunks", totals)
	}
}
