package tx

import "context"

// Runner executes fn within one transaction: every tx-aware store operation
// performed through the derived context commits or rolls back together.
// A non-nil error from fn rolls the transaction back and is returned as-is.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
