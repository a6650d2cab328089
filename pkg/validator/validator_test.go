package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name     string   `json:"name" validate:"required,max=5"`
	Email    string   `json:"email,omitempty" validate:"omitempty,email"`
	Kind     string   `json:"kind" validate:"oneof=a b"`
	Tags     []string `json:"tags" validate:"max=2"`
	Internal string   `json:"-" validate:"required"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(payload{Name: "ok", Kind: "a", Internal: "x"}))

	err := Struct(payload{Name: "toolong", Email: "nope", Kind: "c", Tags: []string{"1", "2", "3"}})
	if assert.Error(t, err) {
		msg := err.Error()
		assert.Contains(t, msg, "name must be at most 5 characters")
		assert.Contains(t, msg, "email must be a valid email")
		assert.Contains(t, msg, "kind must be one of [a b]")
		assert.Contains(t, msg, "tags must have at most 2 items")
		assert.Contains(t, msg, "Internal is required")
	}
}
