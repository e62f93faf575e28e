package llm

import (
	"context"
	"strings"
)

// NoContextAnswer is returned by ExtractiveCompleter when nothing was retrieved.
const NoContextAnswer = "I could not find an answer in the indexed documents."

// ExtractiveCompleter answers offline by returning the nearest context block.
type ExtractiveCompleter struct{}

var _ Completer = ExtractiveCompleter{}

// Complete returns the first non-blank context block.
func (ExtractiveCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, c := range req.Contexts {
		if s := strings.TrimSpace(c); s != "" {
			return s, nil
		}
	}
	return NoContextAnswer, nil
}

// ModelName returns "extractive".
func (ExtractiveCompleter) ModelName() string {
	return "extractive"
}
