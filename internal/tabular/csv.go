// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package tabular

import (
	"bytes"
	"fmt"
	"strings"
)

// candidateDelimiters in tie-break order.
var candidateDelimiters = []rune{',', ';', '\t'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseCSV(data []byte) ([]rawRow, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	lines, err := readRecords(string(data), detectDelimiter(data))
	if err != nil {
		return nil, err
	}

	table := make([][]string, 0, len(lines))
	for _, line := range lines {
		if isBlankLine(line) {
			continue
		}
		for i := range line {
			line[i] = strings.TrimSpace(line[i])
		}
		table = append(table, line)
	}
	return fromTable(table, false), nil
}

// readRecords splits delimited text into records. A field opened by '"' or
// '\'' runs to the matching closing quote and may hold delimiters and line
// breaks; a doubled quote inside it is a literal quote. Quotes anywhere
// else are ordinary characters.
func readRecords(text string, comma rune) ([][]string, error) {
	var (
		table  [][]string
		line   []string
		field  strings.Builder
		quote  rune
		start  = true
		lineNo = 1
		opened int
	)
	endField := func() {
		line = append(line, field.String())
		field.Reset()
		start = true
	}
	endLine := func() {
		endField()
		table = append(table, line)
		line = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			lineNo++
		}

		if quote != 0 {
			if r != quote {
				field.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == quote {
				field.WriteRune(r)
				i++
				continue
			}
			quote = 0
			continue
		}

		switch {
		case r == comma:
			endField()
		case r == '\n':
			endLine()
		case r == '\r' && i+1 < len(runes) && runes[i+1] == '\n':
			// The newline that follows ends the record.
		case start && (r == ' ' || r == '\t'):
			// Leading blanks before a quote are not part of the field.
		case start && (r == '"' || r == '\''):
			quote, start, opened = r, false, lineNo
		default:
			field.WriteRune(r)
			start = false
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("line %d: quoted field not closed", opened)
	}
	if len(line) > 0 || field.Len() > 0 || !start {
		endLine()
	}
	return table, nil
}

// detectDelimiter picks the candidate that occurs most often in the header
// line outside of quoted fields. Comma wins when nothing matches.
func detectDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}

	counts := make(map[rune]int, len(candidateDelimiters))
	var quote rune
	fieldStart := true
	for _, r := range string(header) {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case fieldStart && (r == '"' || r == '\''):
			quote = r
		default:
			counts[r]++
		}
		fieldStart = quote == 0 && (r == ',' || r == ';' || r == '\t' || r == ' ')
	}

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func isBlankLine(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}
