package driven

// TextAnalyzer derives frequency tables from normalised text.
type TextAnalyzer interface {
	// Terms counts content words.
	Terms(text string) map[string]int64

	// Entities counts recognised entities keyed "KIND:value".
	Entities(text string) map[string]int64
}
