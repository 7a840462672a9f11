package datagen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupeKeepsFirstAndOrder(t *testing.T) {
	in := []TrainingExample{
		{Input: "What is Go?", Output: "a language"},
		{Input: "hello", Output: "hi"},
		{Input: "  what is go?  ", Output: "dup"},
		{Input: "HELLO", Output: "dup"},
		{Input: "bye", Output: "later"},
	}
	got := Dedupe(in)
	require.Equal(t, []TrainingExample{
		{Input: "What is Go?", Output: "a language"},
		{Input: "hello", Output: "hi"},
		{Input: "bye", Output: "later"},
	}, got)
}

func TestDedupeIdempotent(t *testing.T) {
	in := []TrainingExample{{Input: "a", Output: "1"}, {Input: "A ", Output: "2"}, {Input: "b", Output: "3"}}
	once := Dedupe(in)
	require.Equal(t, once, Dedupe(once))
	require.Len(t, in, 3)
}

func TestDedupeEmpty(t *testing.T) {
	require.Empty(t, Dedupe(nil))
}
