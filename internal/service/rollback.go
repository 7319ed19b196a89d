package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

type compensation struct {
	desc string
	fn   func(context.Context) error
}

// operation tracks the compensating actions registered during one logical
// operation. Compensations are registered only after the forward action
// they reverse has observably succeeded.
type operation struct {
	name  string
	comps []compensation
}

func newOperation(name string) *operation {
	return &operation{name: name}
}

func (op *operation) add(desc string, fn func(context.Context) error) {
	op.comps = append(op.comps, compensation{desc: desc, fn: fn})
}

// rollback runs the registered compensations in reverse order. Failures
// are logged, not retried; the caller surfaces the original error. The
// context is detached from cancellation so an aborted request cannot
// leave a compensation half-applied.
func (op *operation) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(op.comps) - 1; i >= 0; i-- {
		c := op.comps[i]
		if err := c.fn(ctx); err != nil {
			log.Error().
				Err(err).
				Str("operation", op.name).
				Str("compensation", c.desc).
				Msg("compensating action failed")
		}
	}
}
