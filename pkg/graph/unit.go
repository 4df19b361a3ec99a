package graph

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// textUnit is a run of whole sentences [start, end) of an ingested text.
type textUnit struct {
	start int
	end   int
	text  string
}

var tableDelimRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

// splitIntoUnits groups the sentences of text into units of at most
// maxTokens tokens. A sentence longer than maxTokens forms its own unit.
func splitIntoUnits(text string, encoder string, maxTokens int) ([]textUnit, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if maxTokens <= 0 {
		return []textUnit{{start: 0, end: len(sentences), text: strings.Join(sentences, " ")}}, nil
	}

	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}

	var units []textUnit
	start, tokens := 0, 0
	for i, s := range sentences {
		n := len(enc.Encode(s, nil, nil))
		if i > start && tokens+n > maxTokens {
			units = append(units, textUnit{start: start, end: i, text: strings.Join(sentences[start:i], " ")})
			start, tokens = i, 0
		}
		tokens += n
	}
	units = append(units, textUnit{start: start, end: len(sentences), text: strings.Join(sentences[start:], " ")})
	return units, nil
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Contains(trimmed, "|")
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// splitIntoSentences splits text at sentence ends and blank lines. Markdown
// tables (a header row followed by a delimiter row) stay in one piece so that
// filmography tables keep their columns together.
func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	addLine := func(line string) {
		for _, s := range splitLineIntoSentences(line) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(s)
			if endsSentence(s) {
				flush()
			}
		}
	}

	inTable := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case inTable && isTableRow(line):
			current.WriteString("\n")
			current.WriteString(line)

		case inTable:
			inTable = false
			flush()
			if trimmed != "" {
				addLine(trimmed)
			}

		case isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])):
			flush()
			inTable = true
			current.WriteString(line)

		case isTableRow(line):
			flush()
			sentences = append(sentences, trimmed)

		case trimmed == "":
			flush()

		default:
			addLine(trimmed)
		}
	}
	flush()

	return sentences
}

// splitLineIntoSentences cuts a line after '.', '!' and '?' unless the mark
// follows a digit and precedes a space, as in numbered lists.
func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])
		if line[i] != '.' && line[i] != '!' && line[i] != '?' {
			continue
		}
		if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
			continue
		}
		// single letter initials such as "A. R. Rahman" do not end a sentence
		if line[i] == '.' && isInitial(line, i) {
			continue
		}

		j := i + 1
		for j < len(line) && strings.IndexByte(".!?\"')]}", line[j]) >= 0 {
			current.WriteByte(line[j])
			j++
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isInitial reports whether the dot at i closes a single upper case letter
// that starts a word.
func isInitial(line string, i int) bool {
	if i == 0 || line[i-1] < 'A' || line[i-1] > 'Z' {
		return false
	}
	return i == 1 || line[i-2] == ' ' || line[i-2] == '.'
}
