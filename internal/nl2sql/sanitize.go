package nl2sql

import "strings"

const fence = "```"

// Sanitize strips markdown code fences and surrounding whitespace from
// generated text. Every fence is removed, and so is a language tag that
// ends its line, such as ```postgresql or ```tsql. It does not parse or
// validate SQL.
func Sanitize(raw string) string {
	var out strings.Builder
	rest := raw
	for {
		idx := strings.Index(rest, fence)
		if idx < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:idx])
		rest = rest[idx+len(fence):]
		rest = rest[fenceTagLen(rest):]
	}
	return strings.TrimSpace(out.String())
}

// fenceTagLen returns the length of the language tag at the start of s, or
// 0 when s does not start with one. A tag is followed only by blanks and then
// a line break, another backtick or the end of the text.
func fenceTagLen(s string) int {
	n := 0
	for n < len(s) && isTagByte(s[n]) {
		n++
	}
	if n == 0 {
		return 0
	}
	end := n
	for end < len(s) && (s[end] == ' ' || s[end] == '\t') {
		end++
	}
	if end == len(s) || s[end] == '\n' || s[end] == '\r' || s[end] == '`' {
		return n
	}
	return 0
}

func isTagByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '_' || c == '+' || c == '-'
}
