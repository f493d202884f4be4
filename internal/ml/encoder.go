package ml

import (
	"sort"
	"sync"
)

// LabelEncoder maps categorical string labels onto dense integer codes.
// The vocabulary is fixed at fit time and sorted lexicographically, so codes
// are stable across processes as long as the training corpus is the same.
type LabelEncoder struct {
	Classes []string

	once  sync.Once
	index map[string]int
}

// FitLabelEncoder builds an encoder over the unique values in the input.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}

	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	return &LabelEncoder{Classes: classes}
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

// Transform returns the integer code for a known label.
// The second return value is false for labels outside the vocabulary.
func (e *LabelEncoder) Transform(label string) (int, bool) {
	e.once.Do(e.buildIndex)
	code, ok := e.index[label]
	return code, ok
}

// Label returns the original label for an integer code.
func (e *LabelEncoder) Label(code int) (string, bool) {
	if code < 0 || code >= len(e.Classes) {
		return "", false
	}
	return e.Classes[code], true
}

// Len returns the vocabulary size.
func (e *LabelEncoder) Len() int {
	return len(e.Classes)
}
