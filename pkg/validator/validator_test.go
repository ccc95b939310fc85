package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type contact struct {
	Name    string `json:"name" validate:"max=5"`
	Email   string `json:"email" validate:"required,email"`
	Channel string `json:"channel" validate:"required,oneof=web chatbot"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(contact{Name: "Ada", Email: "ada@example.com", Channel: "web"}))

	err := v.Validate(contact{Name: "Adalovelace", Email: "nope", Channel: "fax"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "name must not exceed 5 characters")
		assert.Contains(t, err.Error(), "email must be a valid email")
		assert.Contains(t, err.Error(), "channel must be one of [web chatbot]")
	}

	err = v.Validate(&contact{Channel: "web"})
	if assert.Error(t, err) {
		assert.Equal(t, "email is required", err.Error())
	}
}
