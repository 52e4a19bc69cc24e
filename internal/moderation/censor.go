// Package moderation masks forbidden words in message text before it is
// archived and broadcast.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

/*
Censor matches a dictionary of forbidden words with an Aho-Corasick
automaton.  Matching runs over a normalized view of the text (lowercased,
leet characters folded, punctuation and spacing stripped) so "B.4.d word"
variants cannot slip through, while the replacement is applied to the
original runes to preserve spacing.
*/
type Censor struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

func NewCensor(words []string, replacement rune) (*Censor, error) {
	patterns := make([][]rune, len(words))
	for i, w := range words {
		normalized, _ := normalize([]rune(w))
		patterns[i] = normalized
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{matcher: m, replacement: replacement}, nil
}

// Censor replaces every dictionary match in the text with the replacement
// rune.  Unmatched text is returned unchanged.
func (c *Censor) Censor(text string) string {
	original := []rune(text)
	normalized, index := normalize(original)
	if len(normalized) == 0 {
		return text
	}

	matches := c.matcher.MultiPatternSearch(normalized, false)
	if len(matches) == 0 {
		return text
	}

	for _, match := range matches {
		start := match.Pos
		end := start + len(match.Word)
		if start < 0 || end > len(index) {
			continue
		}

		// Mask the original span covered by the normalized match,
		// punctuation and all.
		for i := index[start]; i <= index[end-1]; i++ {
			original[i] = c.replacement
		}
	}
	return string(original)
}

/*
normalize lowercases and folds the input, dropping punctuation, spacing and
symbols.  The second return value maps each normalized rune back to its
position in the input.
*/
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	index := make([]int, 0, len(input))

	for i, r := range input {
		folded := foldLeet(r)
		if unicode.IsPunct(folded) || unicode.IsSpace(folded) || unicode.IsSymbol(folded) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(folded))
		index = append(index, i)
	}
	return normalized, index
}

// foldLeet maps common leet-speak characters back to their alphabet
// counterparts.
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
