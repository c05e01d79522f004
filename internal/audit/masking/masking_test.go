package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSensitive(t *testing.T) {
	out := MaskSensitive(map[string]any{
		"username":     "alice",
		"new_password": "hunter22",
		"nested":       map[string]any{"access_token": "abc"},
		" ":            "dropped",
	})

	assert.Equal(t, "alice", out["username"])
	assert.Equal(t, "****", out["new_password"])
	assert.Equal(t, map[string]any{"access_token": "****"}, out["nested"])
	assert.NotContains(t, out, " ")
	assert.Nil(t, MaskSensitive(nil))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(" "))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "****6789", MaskSecret("abcdef0123456789"))
}
