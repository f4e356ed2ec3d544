// Package parser extracts the single JSON action object a model embeds in its
// free-form answer.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// fencedJSON matches a ```json fenced block. The tag is case-insensitive.
var fencedJSON = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n?(.*?)```")

// ParseError carries the candidate text that failed to decode.
type ParseError struct {
	Candidate string
	Err       error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", dperrors.ErrMalformedJSON, e.Err)
}

// Unwrap lets errors.Is match ErrMalformedJSON.
func (e *ParseError) Unwrap() []error {
	return []error{dperrors.ErrMalformedJSON, e.Err}
}

// Extract returns the JSON candidate in text: the contents of the first ```json
// fence, else the first balanced {...} object found by a string-aware brace
// walk. It returns ErrNoJSONFound when neither exists.
func Extract(text string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", dperrors.ErrNoJSONFound
	}
	end := closingBrace(text[start:])
	if end < 0 {
		return "", dperrors.ErrNoJSONFound
	}
	return text[start : start+end+1], nil
}

// closingBrace walks s, which starts with '{', and returns the index of the
// brace that brings the depth back to zero, or -1.
func closingBrace(s string) int {
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
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
				return i
			}
		}
	}
	return -1
}

// Parse extracts and decodes the action object in text. The action tag is
// trimmed and lower-cased; tags outside the known table classify as
// ActionUnknown but are kept in Tag. Parameter problems are reported on
// Action.ArgsErr rather than as a parse failure.
func Parse(text string) (*domain.Action, error) {
	candidate, err := Extract(text)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Candidate: candidate, Err: err}
	}
	if raw == nil {
		return nil, &ParseError{Candidate: candidate, Err: fmt.Errorf("top-level value is not an object")}
	}

	tag, _ := raw["action"].(string)
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, &ParseError{Candidate: candidate, Err: fmt.Errorf("missing action field")}
	}

	params := domain.Params{}
	switch p := raw["parameters"].(type) {
	case map[string]any:
		params = p
	case nil:
	default:
		return nil, &ParseError{Candidate: candidate, Err: fmt.Errorf("parameters must be an object")}
	}

	action := &domain.Action{
		Type:         domain.ClassifyAction(tag),
		Tag:          tag,
		Reasoning:    stringField(raw, "reasoning"),
		Observation:  stringField(raw, "observation"),
		TaskComplete: boolField(raw, "task_complete"),
		Params:       params,
	}
	action.Args, action.ArgsErr = domain.DecodeArgs(action.Type, params)
	return action, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return strings.TrimSpace(s)
}

// boolField accepts true/false and their string spellings.
func boolField(raw map[string]any, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	}
	return false
}
