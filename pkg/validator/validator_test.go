package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Message   string `json:"message" validate:"required,notblank,max=4000"`
	SessionID string `json:"session_id" validate:"required,identifier"`
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		req    chatRequest
		fields []string
	}{
		{"valid", chatRequest{Message: "hi", SessionID: "user-42:web"}, nil},
		{"blank message", chatRequest{Message: "   ", SessionID: "s1"}, []string{"message"}},
		{"bad session id", chatRequest{Message: "hi", SessionID: "has space"}, []string{"session_id"}},
		{"both missing", chatRequest{}, []string{"message", "session_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationErrors
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.NotEmpty(t, verr.ForField(f), f)
			}
		})
	}
}

func TestValidateWithLang(t *testing.T) {
	verr := New().ValidateWithLang(&chatRequest{Message: "hi", SessionID: "a b"}, LangZH)
	require.NotNil(t, verr)
	assert.Contains(t, verr.First(), "session_id")
	assert.Contains(t, verr.First(), "字母")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Global().Var("user_1", "identifier"))
	assert.Error(t, Global().Var("", "required,identifier"))
}
