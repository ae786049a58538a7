package session

import (
	"context"
	"errors"
	"testing"

	"github.com/campusattend/console/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeBackend struct {
	calls int
	err   error
}

func (f *fakeBackend) Logout(context.Context) error {
	f.calls++
	return f.err
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name string
		op   Operator
		want error
	}{
		{"system admin", Operator{Email: "a@campus.edu", Role: types.RoleSystemAdmin}, nil},
		{"lecturer", Operator{Email: "l@campus.edu", Role: types.RoleLecturer}, ErrForbidden},
		{"signed out", Operator{}, ErrUnauthenticated},
		{"missing role", Operator{Email: "a@campus.edu"}, ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.op, types.RoleSystemAdmin, "/", nil, zerolog.Nop())
			assert.ErrorIs(t, s.Authorize(), tt.want)
		})
	}
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	s := New(Operator{Email: "a@campus.edu", Role: types.RoleSystemAdmin}, types.RoleSystemAdmin, "/login", backend, zerolog.Nop())

	s.Logout(context.Background())

	_, ok := s.Operator()
	assert.False(t, ok)
	assert.Equal(t, 1, backend.calls)
	assert.ErrorIs(t, s.Authorize(), ErrUnauthenticated)
	assert.Equal(t, "/login", s.LoginURL())

	s.Logout(context.Background())
	assert.Equal(t, 1, backend.calls)
}
