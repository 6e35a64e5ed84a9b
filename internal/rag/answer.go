package rag

import (
	"sort"
	"strings"
)

const (
	// NoInformationAnswer is returned when there are no chunks to answer from.
	NoInformationAnswer = "No relevant information found in the documents."
	// NoSpecificAnswer is returned when the selected sentences are all empty.
	NoSpecificAnswer = "No specific answer found."

	contextChunks    = 3
	answerSentences  = 2
	fallbackRunes    = 200
	fallbackPrefix   = "Based on the documents: "
	contextSeparator = "\n\n"
)

type scoredSentence struct {
	text    string
	overlap int
}

// Synthesize builds an extractive answer from ranked chunks, closest first.
//
// The first three chunks are joined and split on '.'. Sentences are scored by
// how many distinct lowercase words they share with the query, and the two
// best are returned in their original order among equals. When no sentence
// shares a word, the first 200 characters of the joined text are returned instead.
func Synthesize(query string, chunks []Chunk) string {
	if len(chunks) == 0 {
		return NoInformationAnswer
	}

	n := min(len(chunks), contextChunks)
	texts := make([]string, n)
	for i := range n {
		texts[i] = chunks[i].Text
	}
	joined := strings.Join(texts, contextSeparator)

	queryWords := wordSet(query)

	var relevant []scoredSentence
	for _, sentence := range strings.Split(joined, ".") {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		overlap := 0
		for word := range wordSet(trimmed) {
			if _, ok := queryWords[word]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			relevant = append(relevant, scoredSentence{text: trimmed, overlap: overlap})
		}
	}

	if len(relevant) == 0 {
		return fallbackPrefix + truncateRunes(joined, fallbackRunes) + "..."
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].overlap > relevant[j].overlap
	})

	top := make([]string, 0, answerSentences)
	for _, s := range relevant[:min(len(relevant), answerSentences)] {
		top = append(top, s.text)
	}
	answer := strings.Join(top, ". ")
	if answer == "" {
		return NoSpecificAnswer
	}
	return answer + "."
}

// wordSet returns the distinct lowercase whitespace-separated words of s.
func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
