// Package normalize derives identity keys from entity mentions.
//
// A key is the case folded, diacritic free, whitespace collapsed form of the
// mention with leading honorifics removed. Two mentions of the same label
// denote the same graph node exactly when their keys are equal.
package normalize

import (
	"strings"
	"unicode"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/schema"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultHonorifics are stripped from the start of person names. Entries are
// matched after folding, so they are written in lower case without
// punctuation.
var DefaultHonorifics = []string{
	"dr", "mr", "mrs", "ms", "miss", "prof", "sir",
	"shri", "sri", "smt", "thiru", "thirumathi", "selvi", "kumari",
	"superstar", "super star", "thalaivar", "thala", "thalapathy", "thalapathi",
	"ulaga nayagan", "ulaganayagan", "universal hero", "makkal selvan",
	"puratchi thalaivar", "puratchi thalaivi", "kalaignar", "captain",
	"isaignani", "isai puyal", "mozart of madras", "chiyaan", "chiyan",
	"ilaya thalapathy", "ultimate star", "actor", "director", "late",
}

// Normalizer computes identity keys. It is immutable and safe for
// concurrent use.
type Normalizer struct {
	honorifics [][]string
	labels     map[string]bool
}

// Params configure a Normalizer.
//
// Honorifics replaces DefaultHonorifics when non-empty. HonorificLabels lists
// the labels honorific stripping applies to and defaults to Person only, since
// titles such as "Thalapathy" are also film names.
type Params struct {
	Honorifics      []string
	HonorificLabels []string
}

// New returns a Normalizer for the given parameters.
func New(params Params) *Normalizer {
	list := params.Honorifics
	if len(list) == 0 {
		list = DefaultHonorifics
	}
	labels := params.HonorificLabels
	if len(labels) == 0 {
		labels = []string{schema.Person}
	}

	n := &Normalizer{
		labels: make(map[string]bool, len(labels)),
	}
	for _, l := range labels {
		n.labels[l] = true
	}
	for _, h := range list {
		toks := strings.Fields(n.clean(h))
		if len(toks) > 0 {
			n.honorifics = append(n.honorifics, toks)
		}
	}
	// longest first so multi-word titles win over their prefixes
	for i := 1; i < len(n.honorifics); i++ {
		for j := i; j > 0 && len(n.honorifics[j]) > len(n.honorifics[j-1]); j-- {
			n.honorifics[j], n.honorifics[j-1] = n.honorifics[j-1], n.honorifics[j]
		}
	}
	return n
}

// Key returns the identity key of raw for label. Empty or whitespace-only
// names are rejected with a validation error; every other input yields a
// non-empty key.
func (n *Normalizer) Key(label, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", common.Errorf(common.KindValidation, "normalize", "empty %s name", label)
	}

	tokens := strings.Fields(n.clean(raw))
	if len(tokens) == 0 {
		// only punctuation; fall back to the folded raw text
		return strings.Join(strings.Fields(fold(raw)), " "), nil
	}

	if n.labels[label] {
		if stripped := n.stripHonorifics(tokens); len(stripped) > 0 {
			tokens = stripped
		}
	}

	return strings.Join(joinInitials(tokens), " "), nil
}

// clean folds case, removes Latin diacritics and turns punctuation into
// spaces.
func (n *Normalizer) clean(s string) string {
	s = norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	var base rune
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			// Indic vowel signs and viramas are part of the letter
			if base != 0 && !isAlphabetic(base) {
				b.WriteRune(r)
			}
			continue
		}
		base = r
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}

	return fold(norm.NFC.String(b.String()))
}

// fold uses a fresh Caser per call; Casers are stateful.
func fold(s string) string {
	return cases.Fold().String(s)
}

func isAlphabetic(r rune) bool {
	return unicode.In(r, unicode.Latin, unicode.Greek, unicode.Cyrillic)
}

func (n *Normalizer) stripHonorifics(tokens []string) []string {
	for {
		matched := false
		for _, h := range n.honorifics {
			if hasPrefix(tokens, h) {
				tokens = tokens[len(h):]
				matched = true
				break
			}
		}
		if !matched || len(tokens) == 0 {
			return tokens
		}
	}
}

func hasPrefix(tokens, prefix []string) bool {
	if len(prefix) > len(tokens) {
		return false
	}
	for i := range prefix {
		if tokens[i] != prefix[i] {
			return false
		}
	}
	return true
}

// joinInitials merges runs of single-letter tokens: "a r rahman" becomes
// "ar rahman", matching the undotted spelling "AR Rahman".
func joinInitials(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	run := ""
	for _, t := range tokens {
		if len([]rune(t)) == 1 && unicode.IsLetter([]rune(t)[0]) {
			run += t
			continue
		}
		if run != "" {
			out = append(out, run)
			run = ""
		}
		out = append(out, t)
	}
	if run != "" {
		out = append(out, run)
	}
	return out
}
