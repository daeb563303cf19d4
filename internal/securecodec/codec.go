// Package securecodec encrypts and signs request payloads independently of
// transport TLS. Envelopes carry their own salt, IV, and creation timestamp;
// decryption rejects envelopes older than the staleness window as replay
// protection.
package securecodec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

const (
	// subkeyIterations is the PBKDF2 cost for per-message subkeys.
	subkeyIterations = 10_000
	saltLength       = 16
)

// Envelope is a self-describing encrypted message.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
	// Timestamp is epoch milliseconds at encryption time.
	Timestamp int64 `json:"timestamp"`
}

// Codec performs payload encryption and hashing using keys from a Keyring.
// A per-message subkey is derived from the master key and a random salt, so
// no two envelopes share a cipher key.
type Codec struct {
	keyring         *Keyring
	clock           clock.Clock
	stalenessWindow time.Duration
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock overrides the clock used for envelope timestamps.
func WithClock(c clock.Clock) CodecOption {
	return func(cd *Codec) {
		cd.clock = c
	}
}

// WithStalenessWindow overrides the replay-rejection window when positive.
func WithStalenessWindow(d time.Duration) CodecOption {
	return func(cd *Codec) {
		if d > 0 {
			cd.stalenessWindow = d
		}
	}
}

// NewCodec constructs a Codec around a loaded keyring.
func NewCodec(keyring *Keyring, opts ...CodecOption) (*Codec, error) {
	if keyring == nil {
		return nil, faults.New(faults.CodeValidation, "keyring is required")
	}
	c := &Codec{
		keyring:         keyring,
		clock:           clock.NewSystem(),
		stalenessWindow: 5 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// EncryptRequest serializes data to JSON and encrypts it into an envelope.
func (c *Codec) EncryptRequest(data any) (*Envelope, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not serialize payload")
	}
	return c.EncryptBytes(plaintext)
}

// EncryptBytes encrypts a raw payload into an envelope using AES-256-CBC
// with PKCS7 padding under a fresh per-message subkey.
func (c *Codec) EncryptBytes(plaintext []byte) (*Envelope, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not generate salt")
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not generate iv")
	}

	subkey := pbkdf2.Key(c.keyring.MasterKey(), salt, subkeyIterations, 32, sha256.New)
	block, err := aes.NewCipher(subkey)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not init cipher")
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Timestamp:  c.clock.Now().UnixMilli(),
	}, nil
}

// DecryptResponse decrypts an envelope back into its raw JSON payload.
// Envelopes older than the staleness window are rejected regardless of
// whether the ciphertext is otherwise valid.
func (c *Codec) DecryptResponse(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, faults.New(faults.CodeDecryptionError, "envelope is nil")
	}
	age := c.clock.Now().UnixMilli() - env.Timestamp
	if age > c.stalenessWindow.Milliseconds() {
		return nil, faults.New(faults.CodeDecryptionError, "envelope is stale")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "invalid ciphertext encoding")
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "invalid iv encoding")
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "invalid salt encoding")
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, faults.New(faults.CodeDecryptionError, "malformed envelope")
	}

	subkey := pbkdf2.Key(c.keyring.MasterKey(), salt, subkeyIterations, 32, sha256.New)
	block, err := aes.NewCipher(subkey)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeDecryptionError, "could not init cipher")
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// DecryptInto decrypts an envelope and unmarshals the payload into out.
func (c *Codec) DecryptInto(env *Envelope, out any) error {
	plaintext, err := c.DecryptResponse(env)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return faults.Wrap(err, faults.CodeDecryptionError, "could not deserialize payload")
	}
	return nil
}

// HashData returns the SHA-256 hex digest of data.
func HashData(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyHash reports whether data matches the given hex digest, comparing in
// constant time.
func VerifyHash(data []byte, digest string) bool {
	expected := HashData(data)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(digest)) == 1
}

// hmacSHA256 computes the keyed digest used by the signer.
func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, faults.New(faults.CodeDecryptionError, "invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, faults.New(faults.CodeDecryptionError, "invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, faults.New(faults.CodeDecryptionError, "invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
