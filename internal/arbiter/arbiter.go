// Package arbiter picks, or composes, the final translation when several
// services answered for the same piece of a post.
package arbiter

import (
	"context"

	"github.com/valpere/posttran/internal/translator"
)

type EvaluationResult struct {
	SelectedService string
	CompositeText   string
	IsComposite     bool
	Reasoning       string
}

type Arbiter interface {
	Evaluate(ctx context.Context, req translator.TranslateRequest, results []translator.ServiceResult) (*EvaluationResult, error)
}
