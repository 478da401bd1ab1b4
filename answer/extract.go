package answer

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Stage names the extraction step that located the JSON object.
type Stage string

// Extraction stages in the order they are attempted.
const (
	StageNone   Stage = ""
	StageStrict Stage = "strict"
	StageGreedy Stage = "greedy"
	StageScan   Stage = "scan"
)

// DefaultMaxScanCandidates bounds the start positions tried by ScanObject.
const DefaultMaxScanCandidates = 64

// ExtractObject locates the first JSON object in raw:
//  1. the whole trimmed text
//  2. the span from the first '{' to the last '}'
//  3. the first balanced {...} block that is valid JSON (see ScanObject)
func ExtractObject(raw string, maxCandidates int) (string, Stage, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", StageNone, false
	}

	if isObject(s) {
		return s, StageStrict, true
	}

	if obj, ok := GreedyObject(s); ok {
		return obj, StageGreedy, true
	}

	if obj, ok := ScanObject(s, maxCandidates); ok {
		return obj, StageScan, true
	}

	return "", StageNone, false
}

// GreedyObject decodes the text between the first '{' and the last '}'.
func GreedyObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')

	if start < 0 || end <= start {
		return "", false
	}

	candidate := s[start : end+1]
	if !isObject(candidate) {
		return "", false
	}

	return candidate, true
}

// ScanObject tries up to maxCandidates '{' positions from the left and
// returns the first balanced block that is a valid JSON object. Braces
// inside JSON strings are ignored. maxCandidates <= 0 selects
// DefaultMaxScanCandidates.
func ScanObject(s string, maxCandidates int) (string, bool) {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxScanCandidates
	}

	tried := 0

	for start := strings.IndexByte(s, '{'); start >= 0 && tried < maxCandidates; {
		tried++

		if end, ok := matchBrace(s, start); ok {
			if candidate := s[start : end+1]; isObject(candidate) {
				return candidate, true
			}
		}

		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return "", false
}

// matchBrace returns the index of the '}' closing the '{' at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
