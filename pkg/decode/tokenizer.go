// SPDX-License-Identifier: Apache-2.0

package decode

import (
	"strconv"
	"strings"

	"github.com/pgmirror/pgmirror/pkg/rowevent"
)

// parseColumns tokenizes the column-list portion of a "test_decoding"
// table line: a sequence of `name[type]:value` entries separated by
// single spaces. Values may be single-quoted with doubled embedded
// quotes; an unquoted `null` token denotes SQL NULL.
func parseColumns(s string) (rowevent.Tuple, error) {
	var tuple rowevent.Tuple
	i := 0
	n := len(s)

	for i < n {
		for i < n && s[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}

		nameStart := i
		for i < n && s[i] != '[' {
			i++
		}
		if i >= n {
			return nil, columnSyntaxError(s, nameStart)
		}
		name := s[nameStart:i]
		i++ // skip '['

		typeStart := i
		for i < n && s[i] != ']' {
			i++
		}
		if i >= n {
			return nil, columnSyntaxError(s, nameStart)
		}
		colType := s[typeStart:i]
		i++ // skip ']'

		if i >= n || s[i] != ':' {
			return nil, columnSyntaxError(s, nameStart)
		}
		i++ // skip ':'

		val, newI, err := parseValue(s, i, colType)
		if err != nil {
			return nil, err
		}
		i = newI

		tuple = append(tuple, rowevent.Column{Name: name, Value: val})
	}

	return tuple, nil
}

func columnSyntaxError(raw string, at int) error {
	return DecodeError{Raw: raw, Reason: "malformed column entry at offset " + strconv.Itoa(at)}
}

// parseValue parses a single column value starting at offset i in s,
// returning the decoded Value and the offset of the first character past
// the value. Trailing whitespace is not consumed; parseColumns skips it
// before reading the next column name.
func parseValue(s string, i int, colType string) (rowevent.Value, int, error) {
	n := len(s)

	// Unquoted null literal.
	if strings.HasPrefix(s[i:], "null") && (i+4 == n || s[i+4] == ' ') {
		return rowevent.NullValue(colType), i + 4, nil
	}

	if i < n && s[i] == '\'' {
		var sb strings.Builder
		j := i + 1
		for j < n {
			if s[j] == '\'' {
				if j+1 < n && s[j+1] == '\'' {
					sb.WriteByte('\'')
					j += 2
					continue
				}
				j++ // closing quote
				break
			}
			sb.WriteByte(s[j])
			j++
		}
		return rowevent.ScalarValue(colType, convertScalar(colType, sb.String())), j, nil
	}

	// Unquoted raw token (numeric, boolean literal, or similar) up to the
	// next unescaped space.
	start := i
	j := i
	for j < n && s[j] != ' ' {
		j++
	}
	raw := s[start:j]
	return rowevent.ScalarValue(colType, convertScalar(colType, raw)), j, nil
}

// convertScalar converts the textual representation of a value to a Go
// scalar based on the bracketed postgres type, preserving the original
// column order and never coercing NULL (handled separately) to an empty
// string.
func convertScalar(colType, raw string) any {
	switch {
	case colType == "integer" || colType == "bigint" || colType == "smallint":
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
		return raw
	case colType == "boolean":
		switch raw {
		case "true", "t":
			return true
		case "false", "f":
			return false
		default:
			return raw
		}
	case colType == "numeric" || colType == "real" || colType == "double precision":
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return raw
	default:
		// character varying, text, jsonb, timestamp*, uuid, etc. are kept
		// verbatim: the document builder and transform pipeline operate
		// on their textual/JSON form.
		return raw
	}
}
