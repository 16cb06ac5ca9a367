package application

import "context"

// UseCase is what transports hold: the HTTP handlers depend on this rather than
// on the concrete stock and shipping use cases.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
