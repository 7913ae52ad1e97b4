package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// errSkip marks an entity that needed no work this pass.
var errSkip = errors.New("skip")

// EntityFailure is the serializable form of an EntityError.
type EntityFailure struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PassResult aggregates one pass over an entity class.
type PassResult struct {
	Name      string          `json:"name"`
	Succeeded int             `json:"succeeded"`
	Skipped   int             `json:"skipped"`
	Failures  []EntityFailure `json:"failures,omitempty"`
}

func (r PassResult) Failed() int { return len(r.Failures) }

func (r *PassResult) fail(err *EntityError) {
	r.Failures = append(r.Failures, EntityFailure{Kind: err.Kind, ID: err.ID, Reason: err.Err.Error()})
}

// scanFailure records a pass whose entity listing itself failed.
func scanFailure(name string, err error) PassResult {
	r := PassResult{Name: name}
	r.fail(&EntityError{Kind: name, ID: "scan", Err: err})
	return r
}

// runPass applies fn to every item in order, one at a time. A failing item is
// logged and recorded; it never stops the remaining items.
func runPass[T any](ctx context.Context, log *slog.Logger, name string, items []T, id func(T) string, fn func(context.Context, T) error) PassResult {
	res := PassResult{Name: name}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			res.fail(&EntityError{Kind: name, ID: id(item), Err: err})
			continue
		}
		err := safeCall(ctx, item, fn)
		switch {
		case err == nil:
			res.Succeeded++
		case errors.Is(err, errSkip):
			res.Skipped++
		default:
			entityErr := &EntityError{Kind: name, ID: id(item), Err: err}
			log.Error("entity processing failed", "entity", name, "id", entityErr.ID, "err", err)
			res.fail(entityErr)
		}
	}
	return res
}

func safeCall[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
