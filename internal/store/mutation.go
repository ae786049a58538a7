package store

import (
	"context"
	"fmt"
)

// Op is the kind of remote write.
type Op int

const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is one remote write against the backend.
type Mutation struct {
	Op   Op
	ID   string
	Call func(ctx context.Context) error
	// Applied runs after Call succeeds, before the follow-up refresh.
	Applied func()
}

// Mutate performs m and, only if it succeeds, re-reads the collection.
// Local state is never patched; a failed follow-up refresh is reported to
// listeners and does not fail the mutation.
func (s *Store[T]) Mutate(ctx context.Context, m Mutation) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if m.Call == nil {
		return fmt.Errorf("%s %s: mutation has no call", m.Op, s.name)
	}

	if err := m.Call(ctx); err != nil {
		s.logger.Warn().
			Err(err).
			Str("op", m.Op.String()).
			Str("id", m.ID).
			Msg("Mutation rejected")
		return err
	}

	s.logger.Info().
		Str("op", m.Op.String()).
		Str("id", m.ID).
		Msg("Mutation applied, refreshing")

	if m.Applied != nil {
		m.Applied()
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Refresh after mutation failed")
	}
	return nil
}
