package query

import (
	"strings"
	"unicode"
)

type Kind string

const (
	KindEmpty    Kind = "empty"
	KindReadOnly Kind = "read_only"
	KindMutating Kind = "mutating"
	KindMultiple Kind = "multiple"
)

type Classification struct {
	Kind Kind
	// Keyword is the leading keyword, or the offending one for mutating statements.
	Keyword string
}

func (c Classification) ReadOnly() bool {
	return c.Kind == KindReadOnly
}

var readOnlyLeads = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"VALUES":   true,
	"EXPLAIN":  true,
	"SHOW":     true,
	"DESCRIBE": true,
	"TABLE":    true,
}

var mutatingKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"MERGE":    true,
	"UPSERT":   true,
	"REPLACE":  true,
	"DROP":     true,
	"CREATE":   true,
	"ALTER":    true,
	"TRUNCATE": true,
	"ATTACH":   true,
	"DETACH":   true,
	"PRAGMA":   true,
	"VACUUM":   true,
	"REINDEX":  true,
	"GRANT":    true,
	"REVOKE":   true,
	"COPY":     true,
	"INSTALL":  true,
	"LOAD":     true,
	"EXEC":     true,
	"EXECUTE":  true,
	"CALL":     true,
	"SET":      true,
	"INTO":     true,
}

// Classify scans sqlText lexically, skipping string literals, quoted
// identifiers and comments, and reports whether it is one read-only
// statement. Trailing semicolons are allowed.
func Classify(sqlText string) Classification {
	words, statements := scanWords(sqlText)
	if len(words) == 0 {
		return Classification{Kind: KindEmpty}
	}
	if statements > 1 {
		return Classification{Kind: KindMultiple, Keyword: words[0]}
	}
	lead := words[0]
	if !readOnlyLeads[lead] {
		return Classification{Kind: KindMutating, Keyword: lead}
	}
	for _, word := range words[1:] {
		// REPLACE and SET also name a string function and a clause.
		if mutatingKeywords[word] && word != "REPLACE" && word != "SET" {
			return Classification{Kind: KindMutating, Keyword: word}
		}
	}
	return Classification{Kind: KindReadOnly, Keyword: lead}
}

// scanWords returns upper-cased bare words and the number of non-empty
// statements separated by semicolons.
func scanWords(sqlText string) ([]string, int) {
	var words []string
	statements := 0
	current := false
	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i < len(runes) && !(runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/') {
				i++
			}
			i++
		case (r == 'E' || r == 'e') && i+1 < len(runes) && runes[i+1] == '\'':
			i = skipEscapedString(runes, i+1)
			current = true
		case r == '\'' || r == '"' || r == '`':
			i = skipQuoted(runes, i, r)
			current = true
		case r == '[':
			for i < len(runes) && runes[i] != ']' {
				i++
			}
			current = true
		case r == ';':
			if current {
				statements++
			}
			current = false
		case isWordStart(r):
			start := i
			for i+1 < len(runes) && isWordPart(runes[i+1]) {
				i++
			}
			words = append(words, strings.ToUpper(string(runes[start:i+1])))
			current = true
		case !unicode.IsSpace(r):
			current = true
		}
	}
	if current {
		statements++
	}
	return words, statements
}

// skipQuoted returns the index of the closing quote; doubled quotes escape.
func skipQuoted(runes []rune, start int, quote rune) int {
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != quote {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(runes)
}

// skipEscapedString handles PostgreSQL E'...' literals, where a backslash
// escapes the next character as well.
func skipEscapedString(runes []rune, start int) int {
	for i := start + 1; i < len(runes); i++ {
		switch {
		case runes[i] == '\\':
			i++
		case runes[i] != '\'':
		case i+1 < len(runes) && runes[i+1] == '\'':
			i++
		default:
			return i
		}
	}
	return len(runes)
}

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
