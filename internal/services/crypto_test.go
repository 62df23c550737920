package services

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupCodec_RoundTrip(t *testing.T) {
	plaintext := []byte(`{"metadata":{"version":"1.0"},"data":{}}`)

	artifact, err := EncryptBackup(plaintext, "s3cret")
	require.NoError(t, err)

	got, err := DecryptBackup(artifact, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestBackupCodec_TrimsWhitespace(t *testing.T) {
	artifact, err := EncryptBackup([]byte("payload"), "pw")
	require.NoError(t, err)

	got, err := DecryptBackup("  "+artifact+"\n", "pw")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestBackupCodec_WrongPassword(t *testing.T) {
	artifact, err := EncryptBackup([]byte("payload"), "right")
	require.NoError(t, err)

	_, err = DecryptBackup(artifact, "wrong")
	assert.ErrorIs(t, err, ErrBackupPassword)
}

func TestBackupCodec_TamperedPayload(t *testing.T) {
	artifact, err := EncryptBackup([]byte("payload"), "pw")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(artifact)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = DecryptBackup(tampered, "pw")
	assert.ErrorIs(t, err, ErrBackupIntegrity)
}

func TestBackupCodec_Garbage(t *testing.T) {
	_, err := DecryptBackup("not base64 at all!!!", "pw")
	assert.ErrorIs(t, err, ErrBackupIntegrity)

	_, err = DecryptBackup(base64.StdEncoding.EncodeToString([]byte("short")), "pw")
	assert.ErrorIs(t, err, ErrBackupIntegrity)
}
