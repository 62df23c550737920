package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveKey_SanitizesFilename(t *testing.T) {
	userID := uuid.New()
	key, err := ArchiveKey(userID, "extrato janeiro (final).pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "archives/"+userID.String()+"/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.False(t, strings.Contains(key, " "), key)
	assert.False(t, strings.Contains(key, "("), key)
}

func TestArchiveKey_UniquePerCall(t *testing.T) {
	userID := uuid.New()
	a, err := ArchiveKey(userID, "backup.fcbk")
	require.NoError(t, err)
	b, err := ArchiveKey(userID, "backup.fcbk")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestArchiveKey_EmptyFilename(t *testing.T) {
	_, err := ArchiveKey(uuid.New(), "")
	assert.Error(t, err)
}
