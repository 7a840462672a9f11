package datagen

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockRE = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\r?\\n?(.*?)```")

// wrappedExamples covers the two accepted object shapes.
type wrappedExamples struct {
	Examples *[]json.RawMessage `json:"examples"`
	Data     *[]json.RawMessage `json:"data"`
}

type exampleShape struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ParseExamples extracts examples from model output. Accepted shapes are a
// bare array, {"examples": [...]} and {"data": [...]}, either as the whole
// text or inside a fenced code block. Anything else yields an empty slice.
func ParseExamples(raw string) []TrainingExample {
	out, _ := parseExamples(raw)
	return out
}

// parseExamples also reports whether any accepted shape matched, so callers
// can tell malformed output from an empty list.
func parseExamples(raw string) ([]TrainingExample, bool) {
	if elems, ok := decodeShape(raw); ok {
		return keepValid(elems), true
	}
	for _, m := range fencedBlockRE.FindAllStringSubmatch(raw, -1) {
		if elems, ok := decodeShape(m[1]); ok {
			return keepValid(elems), true
		}
	}
	return []TrainingExample{}, false
}

func decodeShape(text string) ([]json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	switch text[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, false
		}
		return arr, true
	case '{':
		var w wrappedExamples
		if err := json.Unmarshal([]byte(text), &w); err != nil {
			return nil, false
		}
		if w.Examples != nil {
			return *w.Examples, true
		}
		if w.Data != nil {
			return *w.Data, true
		}
	}
	return nil, false
}

func keepValid(elems []json.RawMessage) []TrainingExample {
	out := make([]TrainingExample, 0, len(elems))
	for _, el := range elems {
		var ex exampleShape
		if err := json.Unmarshal(el, &ex); err != nil {
			continue
		}
		if strings.TrimSpace(ex.Input) == "" || strings.TrimSpace(ex.Output) == "" {
			continue
		}
		out = append(out, TrainingExample{Input: ex.Input, Output: ex.Output})
	}
	return out
}
