package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvList(t *testing.T) {
	fallback := []string{"http://localhost:3000"}

	t.Setenv("TEST_ORIGINS", "https://app.example.com, https://staging.example.com")
	assert.Equal(t,
		[]string{"https://app.example.com", "https://staging.example.com"},
		getEnvList("TEST_ORIGINS", fallback))

	t.Setenv("TEST_ORIGINS", " , ")
	assert.Equal(t, fallback, getEnvList("TEST_ORIGINS", fallback))

	t.Setenv("TEST_ORIGINS", "")
	assert.Equal(t, fallback, getEnvList("TEST_ORIGINS", fallback))
}
