package secstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"aegis/pkg/faults"
)

// atRestIterations is deliberately lower than the codec's per-message cost:
// the sealer runs on every encrypted read/write.
const atRestIterations = 10_000

var atRestSalt = []byte("aegis.secstore.v1")

// AESGCMSealer seals values with AES-256-GCM under a key derived from a
// device-scoped secret. It stands in for the platform secure storage the
// mobile client relied on.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer derives the at-rest key from the device secret via PBKDF2
// and prepares the AEAD. The secret must be non-empty.
func NewAESGCMSealer(deviceSecret string) (*AESGCMSealer, error) {
	if deviceSecret == "" {
		return nil, faults.New(faults.CodeValidation, "device secret is required")
	}
	key := pbkdf2.Key([]byte(deviceSecret), atRestSalt, atRestIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not init at-rest cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not init at-rest aead")
	}
	return &AESGCMSealer{aead: aead}, nil
}

// Seal encrypts plaintext, prepending the random nonce.
func (s *AESGCMSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not generate nonce")
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (s *AESGCMSealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, faults.New(faults.CodeDecryptionError, "sealed value too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "could not unseal value")
	}
	return plaintext, nil
}
