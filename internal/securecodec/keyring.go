package securecodec

import (
	"context"
	"crypto/rand"
	"errors"
	"io"

	"aegis/internal/secstore"
	"aegis/pkg/faults"
)

const (
	masterKeyStoreKey  = "codec_master_key"
	signingKeyStoreKey = "codec_signing_key"
	keyLength          = 32
)

// Keyring owns the master encryption key and the request signing key.
// Keys are generated once from crypto/rand and persisted encrypted at rest.
// Rotation is manual only: Rotate regenerates both keys, which invalidates
// every envelope and signature produced under the old keys.
type Keyring struct {
	store      secstore.Store
	masterKey  []byte
	signingKey []byte
}

// LoadKeyring reads the keys from the store, generating and persisting them
// on first use.
func LoadKeyring(ctx context.Context, store secstore.Store) (*Keyring, error) {
	if store == nil {
		return nil, faults.New(faults.CodeValidation, "store is required")
	}
	k := &Keyring{store: store}

	var err error
	k.masterKey, err = k.loadOrCreate(ctx, masterKeyStoreKey)
	if err != nil {
		return nil, err
	}
	k.signingKey, err = k.loadOrCreate(ctx, signingKeyStoreKey)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// MasterKey returns the encryption master key.
func (k *Keyring) MasterKey() []byte {
	return k.masterKey
}

// SigningKey returns the HMAC signing key.
func (k *Keyring) SigningKey() []byte {
	return k.signingKey
}

// Rotate regenerates and persists both keys.
func (k *Keyring) Rotate(ctx context.Context) error {
	masterKey, err := k.generateAndStore(ctx, masterKeyStoreKey)
	if err != nil {
		return err
	}
	signingKey, err := k.generateAndStore(ctx, signingKeyStoreKey)
	if err != nil {
		return err
	}
	k.masterKey = masterKey
	k.signingKey = signingKey
	return nil
}

func (k *Keyring) loadOrCreate(ctx context.Context, storeKey string) ([]byte, error) {
	key, err := k.store.Get(ctx, storeKey)
	if err == nil {
		if len(key) != keyLength {
			return nil, faults.New(faults.CodeEncryptionError, "persisted key has wrong length")
		}
		return key, nil
	}
	if !errors.Is(err, secstore.ErrNotFound) {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not load key")
	}
	return k.generateAndStore(ctx, storeKey)
}

func (k *Keyring) generateAndStore(ctx context.Context, storeKey string) ([]byte, error) {
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, faults.Wrap(err, faults.CodeEncryptionError, "could not generate key")
	}
	if err := k.store.Set(ctx, storeKey, key, secstore.Options{Encrypted: true}); err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not persist key")
	}
	return key, nil
}
