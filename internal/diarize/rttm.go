package diarize

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// LoadRTTM reads speaker turns from an RTTM file.
func LoadRTTM(path string) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	turns, err := ParseRTTM(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return turns, nil
}

// ParseRTTM parses SPEAKER records:
//
//	SPEAKER <file> <chan> <onset> <duration> <NA> <NA> <speaker> <NA> <NA>
//
// Blank lines, comments and other record types are skipped.
func ParseRTTM(r io.Reader) ([]Turn, error) {
	var turns []Turn
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";;") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "SPEAKER" {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("rttm line %d: expected at least 8 fields, got %d", lineNo, len(fields))
		}
		onset, err := decimal.NewFromString(fields[3])
		if err != nil {
			return nil, fmt.Errorf("rttm line %d: onset %q: %w", lineNo, fields[3], err)
		}
		duration, err := decimal.NewFromString(fields[4])
		if err != nil {
			return nil, fmt.Errorf("rttm line %d: duration %q: %w", lineNo, fields[4], err)
		}
		if onset.IsNegative() || duration.IsNegative() {
			return nil, fmt.Errorf("rttm line %d: negative onset or duration", lineNo)
		}
		turns = append(turns, Turn{
			Start:   onset,
			End:     onset.Add(duration),
			Speaker: fields[7],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rttm: %w", err)
	}
	return turns, nil
}
