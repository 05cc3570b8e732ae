package secret

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWipe_ZeroesBuffers(t *testing.T) {
	c := New("naver-user", "hunter2")
	login, password := c.login, c.password

	c.Wipe()

	assert.True(t, c.Empty())
	assert.Equal(t, "", c.Login())
	assert.Equal(t, "", c.Password())
	for _, b := range append(login, password...) {
		require.Zero(t, b)
	}

	// second wipe is harmless
	c.Wipe()
}

func TestClone_IsIndependent(t *testing.T) {
	c := New("naver-user", "hunter2")
	clone := c.Clone()

	c.Wipe()

	assert.False(t, clone.Empty())
	assert.Equal(t, "naver-user", clone.Login())
	assert.Equal(t, "hunter2", clone.Password())
}

func TestEmpty(t *testing.T) {
	tests := []struct {
		name string
		c    *Credentials
		want bool
	}{
		{"nil", nil, true},
		{"missing login", New("", "pw"), true},
		{"missing password", New("id", ""), true},
		{"complete", New("id", "pw"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Empty())
		})
	}
}

func TestFormatting_DoesNotLeak(t *testing.T) {
	c := New("naver-user", "hunter2")

	for _, verb := range []string{"%v", "%+v", "%s", "%#v"} {
		out := fmt.Sprintf(verb, c)
		assert.NotContains(t, out, "hunter2", verb)
		assert.NotContains(t, out, "naver-user", verb)
	}
}

func TestNilSafe(t *testing.T) {
	var c *Credentials
	assert.NotPanics(t, func() {
		c.Wipe()
		_ = c.Clone()
		_ = c.Login()
	})
}
