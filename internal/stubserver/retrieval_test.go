package stubserver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/csheth/rulebook/internal/corpus"
)

func TestAnswerPrefersRuleNumbers(t *testing.T) {
	t.Parallel()

	idx := newPassageIndex([]corpus.Page{
		{Number: 1, Text: "Each rule applies to every player. Rule 3.1 covers setup of the board."},
		{Number: 7, Text: "Rule 4.2 states that a player may draw two cards at the start of the turn."},
		{Number: 9, Text: "Rule 4.20 is about scoring."},
	})
	assert.Equal(t, 3, idx.Len())

	got := idx.Answer("What is rule 4.2?", "rules.pdf")
	assert.Equal(t, "From page 7 of rules.pdf: Rule 4.2 states that a player may draw two cards at the start of the turn.", got)
}

func TestAnswerWithoutMatch(t *testing.T) {
	t.Parallel()

	idx := newPassageIndex([]corpus.Page{{Number: 1, Text: "Setup takes five minutes."}})
	assert.Equal(t, "I could not find anything about that in rules.pdf.", idx.Answer("What about penalties?", "rules.pdf"))
	assert.Equal(t, "I could not find anything about that in the loaded document.", newPassageIndex(nil).Answer("x", ""))
}

func TestSplitSentencesKeepsRuleNumbers(t *testing.T) {
	t.Parallel()

	got := splitSentences("See rule 4.2. Then draw! Done?")
	assert.Equal(t, []string{"See rule 4.2.", "Then draw!", "Done?"}, got)
}

func TestGroupSentencesRespectsLimit(t *testing.T) {
	t.Parallel()

	got := groupSentences([]string{"aaaa.", "bbbb.", "cccc."}, 11)
	assert.Equal(t, []string{"aaaa. bbbb.", "cccc."}, got)
}

func TestQueryTermsDropStopWordsAndDuplicates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"rule", "4.2"}, queryTerms("What is rule 4.2? Rule 4.2!"))
}
