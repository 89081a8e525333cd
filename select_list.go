// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"fmt"
	"strings"
	"unicode"
)

// splitSelectList splits a select expression list at top-level commas and
// peels a trailing top-level "AS alias" off every item. Commas and AS inside
// parentheses, brackets, braces or quotes are part of the expression.
func splitSelectList(list string) ([]SelectClause, error) {
	if strings.TrimSpace(list) == "" {
		return nil, newMalformedQueryError(ErrCodeEmptySelect, errMsgEmptySelect)
	}
	parts, err := splitTopLevel(list, ',')
	if err != nil {
		return nil, newMalformedQueryError(ErrCodeUnparsableSelect, errMsgUnparsableSelect, err)
	}
	items := make([]SelectClause, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, newMalformedQueryError(ErrCodeUnparsableSelect, errMsgUnparsableSelect,
				fmt.Sprintf("empty item at position %d", i+1))
		}
		items = append(items, splitAlias(part))
	}
	return items, nil
}

// splitTopLevel splits s at sep where sep is not nested in brackets or quotes.
func splitTopLevel(s string, sep rune) ([]string, error) {
	var (
		parts []string
		stack []rune
		quote rune
		start int
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			if r == quote {
				// doubled quote is an escaped quote
				if i+1 < len(runes) && runes[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
		case '(', '[', '{':
			stack = append(stack, closing(r))
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != r {
				return nil, fmt.Errorf("unexpected %q at offset %d", r, i)
			}
			stack = stack[:len(stack)-1]
		case sep:
			if len(stack) == 0 {
				parts = append(parts, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("missing %q", stack[len(stack)-1])
	}
	return append(parts, string(runes[start:])), nil
}

func closing(open rune) rune {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

// splitAlias detects a trailing top-level "AS <identifier>".
func splitAlias(item string) SelectClause {
	idx := lastTopLevelAs(item)
	if idx < 0 {
		return SelectClause{Expression: item}
	}
	expr := strings.TrimSpace(item[:idx])
	alias := strings.TrimSpace(item[idx+2:])
	if expr == "" || !isAlias(alias) {
		return SelectClause{Expression: item}
	}
	return SelectClause{Expression: expr, Alias: unquoteIdentifier(alias)}
}

// lastTopLevelAs returns the byte offset of the last whitespace delimited AS
// keyword outside brackets and quotes, or -1.
func lastTopLevelAs(s string) int {
	depth := 0
	var quote byte
	found := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case 'a', 'A':
			if depth == 0 && i+2 < len(s) && (s[i+1] == 's' || s[i+1] == 'S') &&
				i > 0 && isSpace(s[i-1]) && isSpace(s[i+2]) {
				found = i
			}
		}
	}
	return found
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// isAlias accepts a bare identifier or a single double-quoted identifier.
func isAlias(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, `"`) {
		return len(s) >= 2 && strings.HasSuffix(s, `"`) && !strings.Contains(strings.ReplaceAll(s[1:len(s)-1], `""`, ""), `"`)
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func unquoteIdentifier(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}
