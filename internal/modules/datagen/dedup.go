package datagen

import "strings"

func dedupKey(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Dedupe keeps the first example per normalized input, in order.
func Dedupe(examples []TrainingExample) []TrainingExample {
	seen := make(map[string]struct{}, len(examples))
	out := make([]TrainingExample, 0, len(examples))
	for _, ex := range examples {
		k := dedupKey(ex.Input)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ex)
	}
	return out
}
