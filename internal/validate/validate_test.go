package validate

import (
	"errors"
	"testing"

	"github.com/campusattend/console/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validUser() types.UserInput {
	return types.UserInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@campus.edu",
		Role:      types.RoleLecturer,
	}
}

func TestUserValid(t *testing.T) {
	in := validUser()
	in.FirstName = "  Ada "
	in.Email = " ada@campus.edu\t"

	out, err := User(in)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.FirstName)
	assert.Equal(t, "ada@campus.edu", out.Email)
}

func TestUserRejected(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.UserInput)
		message string
		field   string
	}{
		{"blank first name", func(u *types.UserInput) { u.FirstName = "   " }, MsgUserRequired, "firstName"},
		{"missing last name", func(u *types.UserInput) { u.LastName = "" }, MsgUserRequired, "lastName"},
		{"missing email", func(u *types.UserInput) { u.Email = "" }, MsgUserRequired, "email"},
		{"no domain extension", func(u *types.UserInput) { u.Email = "bad@x" }, MsgUserEmail, "email"},
		{"no at sign", func(u *types.UserInput) { u.Email = "bad.example.com" }, MsgUserEmail, "email"},
		{"space in email", func(u *types.UserInput) { u.Email = "a b@x.com" }, MsgUserEmail, "email"},
		{"missing role", func(u *types.UserInput) { u.Role = "" }, MsgUserRole, "role"},
		{"unknown role", func(u *types.UserInput) { u.Role = "janitor" }, MsgUserRole, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validUser()
			tt.mutate(&in)

			_, err := User(in)
			var verr *Error
			require.True(t, errors.As(err, &verr), "expected *Error, got %v", err)
			assert.Equal(t, tt.message, verr.Error())
			assert.NotEmpty(t, verr.Field(tt.field))
		})
	}
}

func TestUserRequiredBeatsFormat(t *testing.T) {
	in := validUser()
	in.FirstName = ""
	in.Email = "bad@x"

	_, err := User(in)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MsgUserRequired, verr.Message)
	assert.Len(t, verr.Fields, 2)
}

func TestPolicy(t *testing.T) {
	require.NoError(t, Policy(types.PolicyInput{ModuleID: 3, GracePeriod: 0, LateThreshold: 15}))

	tests := []struct {
		name  string
		in    types.PolicyInput
		field string
	}{
		{"no module", types.PolicyInput{GracePeriod: 10, LateThreshold: 15}, "moduleId"},
		{"negative module", types.PolicyInput{ModuleID: -1, GracePeriod: 10, LateThreshold: 15}, "moduleId"},
		{"negative grace", types.PolicyInput{ModuleID: 1, GracePeriod: -5, LateThreshold: 15}, "gracePeriod"},
		{"negative late", types.PolicyInput{ModuleID: 1, GracePeriod: 10, LateThreshold: -1}, "lateThreshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *Error
			require.ErrorAs(t, Policy(tt.in), &verr)
			assert.Equal(t, MsgPolicyRequired, verr.Message)
			assert.NotEmpty(t, verr.Field(tt.field))
		})
	}
}
