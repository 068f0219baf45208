package geo

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Stage records how far the recovery chain had to go.
type Stage string

const (
	// StageDirect: the fence-stripped text parsed as JSON.
	StageDirect Stage = "direct"
	// StageExtracted: a {...} span cut out of surrounding prose parsed as JSON.
	StageExtracted Stage = "extracted"
	// StageEmpty: nothing parsed; the result is an empty list.
	StageEmpty Stage = "empty"
)

var fenceRe = regexp.MustCompile("```[a-zA-Z]*\\n?")

// Recovery is the outcome of running the chain over one response text.
type Recovery struct {
	Places []Place
	Stage  Stage
}

// Recover turns unconstrained model text into places. It never fails and is a
// pure function of raw: RawText -> FenceStripped -> DirectParse | Extract
// -> Structured | EmptyFallback.
func Recover(raw string) Recovery {
	text := StripFences(raw)

	if places, ok := ParsePlaces(text); ok {
		return Recovery{Places: places, Stage: StageDirect}
	}
	for _, span := range candidateSpans(text) {
		if places, ok := ParsePlaces(span); ok {
			return Recovery{Places: places, Stage: StageExtracted}
		}
	}
	return Recovery{Places: []Place{}, Stage: StageEmpty}
}

// StripFences removes Markdown code fences such as ```json ... ```.
func StripFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// ExtractObject returns the first balanced {...} span of text, preferring one
// that mentions "places".
func ExtractObject(text string) (string, bool) {
	spans := candidateSpans(text)
	if len(spans) == 0 {
		return "", false
	}
	return spans[0], true
}

// candidateSpans lists the top-level balanced {...} spans of text in order,
// those mentioning "places" first.
func candidateSpans(text string) []string {
	var preferred, rest []string
	for _, span := range ObjectSpans(text) {
		if strings.Contains(span, `"places"`) {
			preferred = append(preferred, span)
		} else {
			rest = append(rest, span)
		}
	}
	return append(preferred, rest...)
}

// ObjectSpans returns every top-level balanced {...} span in text. Braces
// inside JSON strings are ignored. An opening brace that is never closed is
// skipped and scanning resumes right after it.
func ObjectSpans(text string) []string {
	var spans []string
	for i := 0; i < len(text); {
		start := strings.IndexByte(text[i:], '{')
		if start < 0 {
			break
		}
		start += i
		if end, ok := matchBrace(text, start); ok {
			spans = append(spans, text[start:end+1])
			i = end + 1
		} else {
			i = start + 1
		}
	}
	return spans
}

// matchBrace returns the index of the '}' closing the '{' at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
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

// ParsePlaces parses a {"places": [...]} document. Entries that cannot be read
// or have no name are skipped; a valid object without places yields an empty list.
func ParsePlaces(text string) ([]Place, bool) {
	var envelope struct {
		Places []json.RawMessage `json:"places"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, false
	}

	places := make([]Place, 0, len(envelope.Places))
	for _, raw := range envelope.Places {
		p, ok := decodePlace(raw)
		if !ok {
			continue
		}
		places = append(places, p)
	}
	return places, true
}

// decodePlace reads one place leniently: numbers may arrive as strings and the
// rating may arrive as a number.
func decodePlace(raw json.RawMessage) (Place, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Place{}, false
	}

	p := Place{
		Name:      asString(fields["name"]),
		Latitude:  asFloat(fields["latitude"]),
		Longitude: asFloat(fields["longitude"]),
		Address:   asString(fields["address"]),
		Rating:    asString(fields["rating"]),
		Reason:    asString(fields["reason"]),
	}
	if p.Name == "" {
		return Place{}, false
	}
	return p, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
