package repository

import "context"

// Transactor runs fn inside one database transaction; repositories called with
// the derived context join it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
