package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/bookingwatch/internal/model"
)

const (
	serviceName = "bookingwatch"
	sessionKey  = "session"
)

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/bookingwatch/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("bookingwatch-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Vault stores the signed-in session in a keyring.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault backed by the system keyring.
func Open() (*Vault, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &Vault{ring: ring}, nil
}

// NewVault wraps an existing keyring, such as keyring.NewArrayKeyring in tests.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// SaveSession stores sess, replacing any previous session.
func (v *Vault) SaveSession(sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = v.ring.Set(keyring.Item{
		Key:         sessionKey,
		Data:        data,
		Label:       "bookingwatch session",
		Description: sess.Email,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", sessionKey, err)
	}

	return nil
}

// LoadSession returns the stored session or ErrNoSession.
func (v *Vault) LoadSession() (*model.Session, error) {
	item, err := v.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", sessionKey, err)
	}

	var sess model.Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}

	return &sess, nil
}

// ClearSession removes the stored session. Clearing when nobody is logged
// in is not an error.
func (v *Vault) ClearSession() error {
	err := v.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", sessionKey, err)
	}

	return nil
}
