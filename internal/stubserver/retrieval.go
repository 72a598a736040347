package stubserver

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/csheth/rulebook/internal/corpus"
)

const maxPassageChars = 600

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "can": {}, "do": {}, "does": {}, "for": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "me": {}, "of": {},
	"on": {}, "or": {}, "say": {}, "the": {}, "to": {}, "what": {}, "when": {},
	"which": {}, "who": {}, "why": {}, "with": {},
}

type passage struct {
	page  int
	text  string
	terms map[string]struct{}
}

// passageIndex answers questions by keyword overlap against sentence-sized
// passages of the loaded document.
type passageIndex struct {
	passages []passage
}

func newPassageIndex(pages []corpus.Page) *passageIndex {
	idx := &passageIndex{}
	for _, page := range pages {
		for _, text := range groupSentences(splitSentences(page.Text), maxPassageChars) {
			idx.passages = append(idx.passages, passage{page: page.Number, text: text, terms: termSet(text)})
		}
	}
	return idx
}

// Len returns the number of indexed passages.
func (p *passageIndex) Len() int {
	return len(p.passages)
}

// Answer returns the best matching passage, citing its page.
func (p *passageIndex) Answer(question, document string) string {
	if document == "" {
		document = "the loaded document"
	}
	query := queryTerms(question)
	type candidate struct {
		idx   int
		score int
	}
	candidates := make([]candidate, 0, len(p.passages))
	for i, psg := range p.passages {
		score := 0
		for _, term := range query {
			if _, ok := psg.terms[term]; !ok {
				continue
			}
			score++
			// Rule numbers are the strongest signal in a rulebook.
			if strings.ContainsFunc(term, unicode.IsDigit) {
				score += 2
			}
		}
		if score > 0 {
			candidates = append(candidates, candidate{idx: i, score: score})
		}
	}
	if len(candidates) == 0 {
		return fmt.Sprintf("I could not find anything about that in %s.", document)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	best := p.passages[candidates[0].idx]
	return fmt.Sprintf("From page %d of %s: %s", best.page, document, best.text)
}

func queryTerms(question string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, term := range tokenize(question) {
		if _, stop := stopWords[term]; stop {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, term := range tokenize(text) {
		set[term] = struct{}{}
	}
	return set
}

// tokenize lower-cases text and splits it into words, keeping dotted rule
// numbers such as 4.2 intact.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	out := fields[:0]
	for _, field := range fields {
		field = strings.Trim(field, ".")
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for idx, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := idx + utf8.RuneLen(r)
		// A dot between digits belongs to a rule number.
		if r == '.' && end < len(text) && idx > 0 && isDigitByte(text[idx-1]) && isDigitByte(text[end]) {
			continue
		}
		if segment := strings.TrimSpace(text[start:end]); segment != "" {
			sentences = append(sentences, segment)
		}
		start = end
	}
	if segment := strings.TrimSpace(text[start:]); segment != "" {
		sentences = append(sentences, segment)
	}
	return sentences
}

func groupSentences(sentences []string, limit int) []string {
	var groups []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+1+len(sentence) > limit {
			groups = append(groups, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		groups = append(groups, current.String())
	}
	return groups
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}
