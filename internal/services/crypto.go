package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	backupSaltSize   = 16
	backupNonceSize  = 12
	backupKeySize    = 32
	backupKDFRounds  = 100000
)

var (
	// ErrBackupIntegrity means the artifact was damaged in transit or on
	// disk: its checksum no longer matches the payload.
	ErrBackupIntegrity = errors.New("backup artifact failed integrity check")

	// ErrBackupPassword covers the undistinguishable cases of a wrong
	// password and a payload altered after the checksum was computed.
	ErrBackupPassword = errors.New("wrong password or corrupted backup")
)

func backupKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, backupKDFRounds, backupKeySize, sha256.New)
}

// EncryptBackup seals a plaintext into the portable backup artifact:
// base64( SHA-256(payload) || payload ) where payload is
// salt || nonce || AES-GCM ciphertext and the key comes from
// PBKDF2-SHA256 over the password and salt.
func EncryptBackup(plaintext []byte, password string) (string, error) {
	salt := make([]byte, backupSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, backupNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	block, err := aes.NewCipher(backupKey(password, salt))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}

	payload := make([]byte, 0, backupSaltSize+backupNonceSize+len(plaintext)+gcm.Overhead())
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = gcm.Seal(payload, nonce, plaintext, nil)

	sum := sha256.Sum256(payload)
	artifact := make([]byte, 0, len(sum)+len(payload))
	artifact = append(artifact, sum[:]...)
	artifact = append(artifact, payload...)
	return base64.StdEncoding.EncodeToString(artifact), nil
}

// DecryptBackup opens an artifact produced by EncryptBackup. The checksum is
// verified before any decryption, so callers can tell transport damage
// (ErrBackupIntegrity) apart from a wrong password (ErrBackupPassword).
func DecryptBackup(artifact, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(artifact))
	if err != nil {
		return nil, ErrBackupIntegrity
	}
	if len(raw) < sha256.Size+backupSaltSize+backupNonceSize+1 {
		return nil, ErrBackupIntegrity
	}

	sum := raw[:sha256.Size]
	payload := raw[sha256.Size:]
	want := sha256.Sum256(payload)
	if !hmac.Equal(sum, want[:]) {
		return nil, ErrBackupIntegrity
	}

	salt := payload[:backupSaltSize]
	nonce := payload[backupSaltSize : backupSaltSize+backupNonceSize]
	ciphertext := payload[backupSaltSize+backupNonceSize:]

	block, err := aes.NewCipher(backupKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBackupPassword
	}
	return plaintext, nil
}
