// Package extractive answers questions offline by selecting the context
// sentences that share the most content words with the question.
package extractive

import (
	"context"
	"math"
	"sort"
	"strings"

	"paperpal/internal/prompt"
	"paperpal/internal/tokenize"
)

const DefaultMaxSentences = 3

// NotAvailableAnswer is returned when no sentence overlaps the question.
const NotAvailableAnswer = "The " + prompt.NotAvailable + "."

// Synthesizer ranks sentences by question overlap weighted by how often each
// word occurs across the retrieved passages.
type Synthesizer struct {
	maxSentences int
}

func New(maxSentences int) *Synthesizer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Synthesizer{maxSentences: maxSentences}
}

func (s *Synthesizer) Name() string { return "extractive" }

// Answer returns up to maxSentences matching sentences in passage order.
func (s *Synthesizer) Answer(ctx context.Context, contexts []string, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	for _, c := range contexts {
		sentences = append(sentences, tokenize.Sentences(c)...)
	}
	ranked := rank(sentences, tokenize.Set(question))
	if len(ranked) == 0 {
		return NotAvailableAnswer, nil
	}
	n := s.maxSentences
	if n > len(ranked) {
		n = len(ranked)
	}
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = ranked[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// BestSentence returns the sentence of passage that best matches question,
// or "" when none shares a content word with it.
func BestSentence(passage, question string) string {
	sentences := tokenize.Sentences(passage)
	ranked := rank(sentences, tokenize.Set(question))
	if len(ranked) == 0 {
		return ""
	}
	return sentences[ranked[0].idx]
}

type scored struct {
	idx   int
	score float64
}

// rank scores sentences sharing at least one word with the question, best first.
func rank(sentences []string, question map[string]struct{}) []scored {
	if len(question) == 0 {
		return nil
	}
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = tokenize.Words(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	// Normalize frequencies
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	var scores []scored
	for i, toks := range tokens {
		matched := map[string]struct{}{}
		for _, tok := range toks {
			if _, ok := question[tok]; ok {
				matched[tok] = struct{}{}
			}
		}
		if len(matched) == 0 {
			continue
		}
		// overlap dominates, frequency breaks ties between equal overlaps
		sscore := float64(len(matched))
		for tok := range matched {
			sscore += 0.5 * freq[tok] / maxF / float64(len(question))
		}
		// Normalize by sentence length to avoid bias
		sscore /= math.Sqrt(math.Max(1, float64(len(toks))/4))
		scores = append(scores, scored{i, sscore})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	return scores
}
