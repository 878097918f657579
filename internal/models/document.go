package models

// Document is a story (or story chunk) as held by the vector index.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// ProcessedDocument is a Document split into chunks ready to be embedded.
type ProcessedDocument struct {
	Document
	Chunks    []string
	Embedding [][]float32
}

// Match is a Document returned by a nearest-neighbour query.
type Match struct {
	Document
	Score float32
}

// SentenceWindow is the run of one to three sentences handed to the prompt
// as inspiration.
type SentenceWindow []string

// NoMatchSnippet is the window text used when the index has nothing to offer.
const NoMatchSnippet = "No matching snippet found."
