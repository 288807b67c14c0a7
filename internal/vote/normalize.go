package vote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseStrategy turns one raw agent response into a Vote.
// Implementations must not panic on malformed input; failures are reported
// as errors wrapping ErrUnparseable.
type ParseStrategy interface {
	Parse(raw string) (Vote, error)
	Name() string
}

// Strategy names accepted by NewStrategy.
const (
	StrategyStructured = "structured"
	StrategyKeyword    = "keyword"
)

// NewStrategy builds a strategy by name. labels is required for keyword
// matching; for structured parsing it optionally restricts the accepted
// classifications.
func NewStrategy(name string, labels []string) (ParseStrategy, error) {
	switch name {
	case StrategyStructured, "":
		return StructuredParse{Labels: labels}, nil
	case StrategyKeyword:
		if len(labels) == 0 {
			return nil, fmt.Errorf("keyword strategy requires a label vocabulary")
		}
		return KeywordMatchParse{Labels: labels}, nil
	default:
		return nil, fmt.Errorf("unknown parse strategy %q", name)
	}
}

// StructuredParse reads a JSON object carrying a classification and a
// rationale. Empty field names fall back to "classification" and "rationale".
// When Labels is set, the classification must equal one of them
// (case-insensitively) and is returned in the vocabulary spelling.
type StructuredParse struct {
	ClassificationField string
	RationaleField      string
	Labels              []string
}

func (StructuredParse) Name() string { return StrategyStructured }

// Parse implements ParseStrategy.
func (s StructuredParse) Parse(raw string) (Vote, error) {
	classField := s.ClassificationField
	if classField == "" {
		classField = "classification"
	}
	ratField := s.RationaleField
	if ratField == "" {
		ratField = "rationale"
	}

	payload := extractObject(cleanJSON([]byte(raw)))
	if len(payload) == 0 {
		return Vote{}, fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Vote{}, fmt.Errorf("%w: decoding json: %v", ErrUnparseable, err)
	}

	if isComposite(fields[classField]) {
		return Vote{}, fmt.Errorf("%w: %q field is not a scalar", ErrUnparseable, classField)
	}
	label := strings.TrimSpace(scalarString(fields[classField]))
	if label == "" {
		return Vote{}, fmt.Errorf("%w: missing %q field", ErrUnparseable, classField)
	}
	if len(s.Labels) > 0 {
		canonical, ok := lookupLabel(s.Labels, label)
		if !ok {
			return Vote{}, fmt.Errorf("%w: label %q not in %v", ErrUnparseable, label, s.Labels)
		}
		label = canonical
	}

	return Vote{
		Classification: Classification(label),
		Rationale:      strings.TrimSpace(scalarString(fields[ratField])),
	}, nil
}

// KeywordMatchParse matches free text against a fixed label vocabulary.
type KeywordMatchParse struct {
	Labels []string
}

func (KeywordMatchParse) Name() string { return StrategyKeyword }

// Parse implements ParseStrategy. Matching is case-insensitive, treats any
// run of whitespace as one space and respects word boundaries, so
// "irrelevant" does not match "Relevant". An occurrence that
// lies inside an occurrence of a longer label is ignored, so "Not Relevant"
// is not also counted as "Relevant". More than one label left is ambiguous.
func (k KeywordMatchParse) Parse(raw string) (Vote, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Vote{}, fmt.Errorf("%w: empty response", ErrUnparseable)
	}
	lower := collapseSpace(strings.ToLower(text))

	labels := make([]string, 0, len(k.Labels))
	for _, l := range k.Labels {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return len(labels[i]) > len(labels[j])
	})

	var (
		covered []span
		kept    []string
	)
	for i, label := range labels {
		if seenFold(labels[:i], label) {
			continue
		}
		spans := wordSpans(lower, collapseSpace(strings.ToLower(label)))
		free := false
		for _, sp := range spans {
			if !sp.within(covered) {
				free = true
				break
			}
		}
		covered = append(covered, spans...)
		if free {
			kept = append(kept, label)
		}
	}

	switch len(kept) {
	case 0:
		return Vote{}, fmt.Errorf("%w: no known label in %q", ErrUnparseable, truncate(text, 60))
	case 1:
		return Vote{Classification: Classification(kept[0]), Rationale: text}, nil
	default:
		return Vote{}, fmt.Errorf("%w: ambiguous labels %v", ErrUnparseable, kept)
	}
}

func lookupLabel(labels []string, label string) (string, bool) {
	for _, l := range labels {
		if strings.EqualFold(strings.TrimSpace(l), label) {
			return strings.TrimSpace(l), true
		}
	}
	return "", false
}

func seenFold(prev []string, label string) bool {
	for _, p := range prev {
		if strings.EqualFold(p, label) {
			return true
		}
	}
	return false
}

// collapseSpace replaces every run of whitespace with a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type span struct{ start, end int }

func (s span) within(others []span) bool {
	for _, o := range others {
		if s.start >= o.start && s.end <= o.end {
			return true
		}
	}
	return false
}

// wordSpans returns every occurrence of word in s delimited by non-word
// characters or the ends of s.
func wordSpans(s, word string) []span {
	var out []span
	for from := 0; from <= len(s)-len(word); {
		idx := strings.Index(s[from:], word)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			out = append(out, span{start, end})
		}
		from = start + 1
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// cleanJSON strips markdown code fences and surrounding whitespace.
// Models often wrap JSON in ```json ... ``` blocks.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}

// extractObject returns the outermost {...} span when the payload carries
// prose around a single JSON object.
func extractObject(s []byte) []byte {
	if len(s) == 0 || (s[0] == '{' && s[len(s)-1] == '}') {
		return s
	}
	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// scalarString renders a JSON scalar as text. Non-string values keep their
// JSON spelling so that e.g. a boolean label is still comparable.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// isComposite reports whether raw is a JSON object or array.
func isComposite(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
