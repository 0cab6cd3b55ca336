package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{User, Assistant, Tool, System, Error} {
		assert.True(t, r.Valid(), r.String())
	}

	assert.False(t, Role("model").Valid())
	assert.False(t, Role("").Valid())
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "error", Error.String())
}
