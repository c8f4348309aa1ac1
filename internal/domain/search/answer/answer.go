package answer

// Answer is a generated response with the identifiers it cites.
type Answer struct {
	text      string
	citations []string
	model     string
}

// New creates an answer.
func New(text string, citations []string, model string) Answer {
	return Answer{text: text, citations: citations, model: model}
}

// Text returns the generated text.
func (a Answer) Text() string { return a.text }

// Citations returns a copy of the cited result identifiers.
func (a Answer) Citations() []string { return append([]string(nil), a.citations...) }

// Model returns the generation model identifier.
func (a Answer) Model() string { return a.model }
