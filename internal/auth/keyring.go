package auth

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

// KeyringServiceName is the keyring service the pair is stored under.
const KeyringServiceName = "mailfront"

// KeyringStore keeps the pair in the OS keyring, one item per token.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyring opens the platform keyring. fileDir is used by the encrypted
// file backend when no native backend is available.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	if fileDir == "" {
		fileDir = "~/.config/mailfront/keyring"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: KeyringServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailfront-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Save writes the refresh token first. When the access token write fails the
// previous refresh token is restored, so a failed Save leaves the old pair.
func (s *KeyringStore) Save(pair TokenPair) error {
	prev, prevErr := s.ring.Get(KeyRefreshToken)
	if prevErr != nil && !isNotFound(prevErr) {
		return fmt.Errorf("reading credential %q: %w", KeyRefreshToken, prevErr)
	}

	refresh := keyring.Item{Key: KeyRefreshToken, Data: []byte(pair.RefreshToken), Label: "mailfront refresh token"}
	if err := s.ring.Set(refresh); err != nil {
		return fmt.Errorf("setting credential %q: %w", KeyRefreshToken, err)
	}

	access := keyring.Item{Key: KeyAccessToken, Data: []byte(pair.AccessToken), Label: "mailfront access token"}
	if err := s.ring.Set(access); err != nil {
		err = fmt.Errorf("setting credential %q: %w", KeyAccessToken, err)
		var rollbackErr error
		if prevErr == nil {
			rollbackErr = s.ring.Set(prev)
		} else {
			rollbackErr = s.ring.Remove(KeyRefreshToken)
		}
		if rollbackErr != nil {
			return fmt.Errorf("token pair only half written: %w", errors.Join(err, rollbackErr))
		}
		return err
	}
	return nil
}

func (s *KeyringStore) Load() (TokenPair, bool, error) {
	access, err := s.get(KeyAccessToken)
	if err != nil {
		return TokenPair{}, false, err
	}
	refresh, err := s.get(KeyRefreshToken)
	if err != nil {
		return TokenPair{}, false, err
	}
	if access == "" && refresh == "" {
		return TokenPair{}, false, nil
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, true, nil
}

func (s *KeyringStore) Clear() error {
	for _, key := range []string{KeyAccessToken, KeyRefreshToken} {
		if err := s.ring.Remove(key); err != nil && !isNotFound(err) {
			return fmt.Errorf("deleting credential %q: %w", key, err)
		}
	}
	return nil
}

func (s *KeyringStore) get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if isNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, os.ErrNotExist)
}
