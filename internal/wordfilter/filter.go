// Package wordfilter redacts blacklisted words from text before it leaves
// the machine.
//
// Matching is case-insensitive and whole-word: a match only counts when
// the runes on either side are not letters or digits. Punctuation,
// underscores and whitespace all separate words, so "secret" is found in
// "secret_tool.exe" while "pass" is not found in "passenger".
package wordfilter

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder replaces every redacted word.
const Placeholder = "[FILTERED]"

// Filter is an immutable compiled blacklist. The zero value and a nil
// *Filter both behave as the identity transform.
type Filter struct {
	re       *regexp.Regexp
	anchored []*regexp.Regexp
	words    []string
	fallback bool
}

// Compile builds a Filter from words. Blank entries are ignored. If the
// pattern cannot be compiled the returned filter matches nothing and
// Fallback reports true.
func Compile(words []string) *Filter {
	return CompileWithLogger(words, nil)
}

// CompileWithLogger is Compile with an explicit logger for the fallback warning.
func CompileWithLogger(words []string, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, w)
	}
	if len(cleaned) == 0 {
		return &Filter{}
	}

	// Longest first so the alternation prefers "password" over "pass".
	ordered := append([]string(nil), cleaned...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i]) > utf8.RuneCountInString(ordered[j])
	})
	quoted := make([]string, len(ordered))
	anchored := make([]*regexp.Regexp, len(ordered))
	for i, w := range ordered {
		quoted[i] = regexp.QuoteMeta(w)
		re, err := regexp.Compile(`(?i)^(?:` + quoted[i] + `)`)
		if err != nil {
			logger.Warn("word filter compile failed, redaction disabled", "word", i, "error", err)
			return &Filter{words: cleaned, fallback: true}
		}
		anchored[i] = re
	}

	re, err := regexp.Compile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	if err != nil {
		logger.Warn("word filter compile failed, redaction disabled", "words", len(cleaned), "error", err)
		return &Filter{words: cleaned, fallback: true}
	}
	return &Filter{re: re, anchored: anchored, words: cleaned}
}

// Fallback reports whether compilation failed and the filter is a no-op.
func (f *Filter) Fallback() bool {
	return f != nil && f.fallback
}

// Words returns the vocabulary the filter was compiled from.
func (f *Filter) Words() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.words...)
}

// Apply replaces every blacklisted word in text with Placeholder.
// Existing placeholders are left untouched, so Apply is idempotent.
func (f *Filter) Apply(text string) string {
	if f == nil || f.re == nil || text == "" {
		return text
	}
	parts := strings.Split(text, Placeholder)
	for i, part := range parts {
		parts[i] = f.redact(part)
	}
	return strings.Join(parts, Placeholder)
}

func (f *Filter) redact(text string) string {
	var b strings.Builder
	last, pos := 0, 0
	for pos < len(text) {
		loc := f.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		end, ok := f.standaloneAt(text, start, end)
		if !ok {
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + size
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(Placeholder)
		last, pos = end, end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// standaloneAt returns the end of the longest word starting at start that
// has clean edges. The alternation only reports the longest candidate, so
// shorter words at the same position are tried when that one is rejected.
func (f *Filter) standaloneAt(text string, start, end int) (int, bool) {
	if isStandalone(text, start, end) {
		return end, true
	}
	for _, re := range f.anchored {
		loc := re.FindStringIndex(text[start:])
		if loc == nil || loc[1] == 0 {
			continue
		}
		if e := start + loc[1]; e != end && isStandalone(text, start, e) {
			return e, true
		}
	}
	return 0, false
}

// isStandalone checks the word edges of text[start:end]. An edge that is
// itself a letter or digit must not touch another letter or digit.
func isStandalone(text string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(text[start:end])
	if isWordRune(first) && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(prev) {
			return false
		}
	}
	lastRune, _ := utf8.DecodeLastRuneInString(text[start:end])
	if isWordRune(lastRune) && end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(next) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
