// models/document.go
package models

// DocumentMeta carries the filterable attributes of an indexed passage.
// Extra holds any source-specific fields (year, formula name, etc.) that
// do not participate in filtering but should survive persistence.
type DocumentMeta struct {
	Source  string            `json:"source"`
	Subject string            `json:"subject,omitempty"`
	Topics  []string          `json:"topics,omitempty"`
	Chapter string            `json:"chapter,omitempty"`
	Page    int               `json:"page,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`

	// File is the knowledge base file the passage was ingested from.
	// Re-ingesting a file replaces all documents sharing its File.
	File string `json:"file,omitempty"`
}

// Document is a single text passage to be embedded and indexed.
type Document struct {
	Text string       `json:"text"`
	Meta DocumentMeta `json:"meta"`
}

// SearchResult is one retrieval hit. Score is a similarity in (0, 1],
// higher is closer.
type SearchResult struct {
	Text    string   `json:"text"`
	Score   float64  `json:"score"`
	Source  string   `json:"source"`
	Subject string   `json:"subject,omitempty"`
	Topics  []string `json:"topics,omitempty"`
	Chapter string   `json:"chapter,omitempty"`
	Page    int      `json:"page,omitempty"`
}

// SearchFilter narrows retrieval to a subject and/or topic set.
// Subject must match exactly; Topics matches when the document shares
// at least one topic with the filter.
type SearchFilter struct {
	Subject string   `json:"subject,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}
