package rag

import (
	"strings"
	"testing"
)

func chunksOf(texts ...string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, text := range texts {
		out[i] = Chunk{Text: text, ChunkID: i}
	}
	return out
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		chunks []Chunk
		want   string
	}{
		{
			name:   "no chunks",
			query:  "anything",
			chunks: nil,
			want:   "No relevant information found in the documents.",
		},
		{
			name:   "single matching sentence",
			query:  "What is the capital of France?",
			chunks: chunksOf("The capital of France is Paris."),
			want:   "The capital of France is Paris.",
		},
		{
			name:  "top two by overlap",
			query: "red apples grow on trees",
			chunks: chunksOf(
				"Bananas are yellow. Red apples grow on trees. Trees are tall",
			),
			want: "Red apples grow on trees. Trees are tall.",
		},
		{
			name:  "ties keep encounter order",
			query: "cats dogs",
			chunks: chunksOf(
				"I like cats. I like dogs. Cats chase mice",
			),
			want: "I like cats. I like dogs.",
		},
		{
			name:  "only first three chunks are used",
			query: "zebra",
			chunks: chunksOf(
				"One.", "Two.", "Three.", "A zebra is here.",
			),
			want: "Based on the documents: One.\n\nTwo.\n\nThree....",
		},
		{
			name:   "match is case insensitive but punctuation sensitive",
			query:  "PARIS, france",
			chunks: chunksOf("paris, is lovely. France is big"),
			want:   "paris, is lovely. France is big.",
		},
		{
			name:   "no overlap falls back to context prefix",
			query:  "quantum",
			chunks: chunksOf("Nothing relevant here. Or here"),
			want:   "Based on the documents: Nothing relevant here. Or here...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Synthesize(tt.query, tt.chunks); got != tt.want {
				t.Errorf("Synthesize(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSynthesize_FallbackTruncatesTo200Characters(t *testing.T) {
	text := strings.Repeat("é", 250)
	got := Synthesize("nomatch", chunksOf(text))

	want := "Based on the documents: " + strings.Repeat("é", 200) + "..."
	if got != want {
		t.Errorf("Synthesize() = %q, want %q", got, want)
	}
}

func TestSynthesize_HigherOverlapWinsOverOrder(t *testing.T) {
	got := Synthesize("the quick brown fox", chunksOf(
		"The dog sleeps. A quick brown fox jumps. The fox is quick",
	))
	// overlaps: "The dog sleeps"=1, "A quick brown fox jumps"=3, "The fox is quick"=3
	if want := "A quick brown fox jumps. The fox is quick."; got != want {
		t.Errorf("Synthesize() = %q, want %q", got, want)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	chunks := chunksOf("alpha beta. beta gamma. gamma alpha", "delta alpha")
	first := Synthesize("alpha gamma", chunks)
	for range 10 {
		if got := Synthesize("alpha gamma", chunks); got != first {
			t.Fatalf("Synthesize() = %q, want %q", got, first)
		}
	}
}
