package indexer

import (
	"time"

	"docrag/internal/errs"
)

// PassResult summarizes one ingestion pass of a source.
type PassResult struct {
	SourceID string `json:"source_id"`
	// NoOp is set when the source reported no changed or deleted documents.
	NoOp    bool `json:"no_op"`
	Added   int  `json:"added"`
	Updated int  `json:"updated"`
	Deleted int  `json:"deleted"`
	// ChunksWritten counts chunks inserted for added and updated documents.
	ChunksWritten  int `json:"chunks_written"`
	ChunksEmbedded int `json:"chunks_embedded"`
	// ChunksRetried counts chunks from earlier passes embedded by this one.
	ChunksRetried int                   `json:"chunks_retried"`
	Errors        []*errs.DocumentError `json:"-"`
	Duration      time.Duration         `json:"duration"`
}

// Failed reports whether any document of the pass was skipped or left
// unembedded.
func (r *PassResult) Failed() bool {
	return len(r.Errors) > 0
}

// ErrorMessages returns the document errors as strings.
func (r *PassResult) ErrorMessages() []string {
	msgs := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		msgs[i] = err.Error()
	}
	return msgs
}
