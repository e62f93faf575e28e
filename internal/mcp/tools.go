package mcp

import "github.com/Aman-CERP/docqa/internal/scanner"

// RebuildInput defines the input schema for the rebuild_index tool (no parameters).
type RebuildInput struct{}

// RebuildOutput defines the output schema for the rebuild_index tool.
type RebuildOutput struct {
	IndexedFiles []string `json:"indexed_files" jsonschema:"document paths covered by the new index"`
}

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Query string `json:"query" jsonschema:"the question to answer from the indexed documents"`
}

// AskOutput defines the output schema for the ask tool.
type AskOutput struct {
	Answer  string   `json:"answer" jsonschema:"answer grounded in the retrieved document chunks"`
	Sources []string `json:"sources" jsonschema:"document paths the answer was grounded in, nearest first"`
}

// ListSourcesInput defines the input schema for the list_sources tool (no parameters).
type ListSourcesInput struct{}

// ListSourcesOutput defines the output schema for the list_sources tool.
type ListSourcesOutput struct {
	Sources []scanner.FileRecord `json:"sources" jsonschema:"documents covered by the most recent rebuild"`
}

// Tool descriptions shared by registration and ListTools.
const (
	rebuildDescription = "Rebuild the document index from the configured corpus folders. " +
		"Run this before asking questions; answers only cover documents indexed by the latest rebuild."
	askDescription = "Answer a question using only the indexed documents. " +
		"Returns the answer and the document paths it was grounded in."
	listSourcesDescription = "List the documents covered by the most recent rebuild with their modification times."
)
