package port

// Classifier assigns a topic to a text. A topic of -1 means no topic matched.
type Classifier interface {
	Classify(text string) (topic int, confidence float64)
}

// Summarizer produces a short extractive summary of a text.
type Summarizer interface {
	Summarize(text string) string
}
