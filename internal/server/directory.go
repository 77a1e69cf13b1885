package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/password"
)

// ErrDuplicateUser is returned when a username is added twice.
var ErrDuplicateUser = errors.New("user already exists")

// Directory is the in-memory account table backing the login route.
type Directory struct {
	hasher password.Hasher

	mu    sync.RWMutex
	users map[string]string

	// dummy is verified for unknown users so both paths cost one hash.
	dummy string
}

// NewDirectory returns an empty Directory using hasher.
func NewDirectory(hasher password.Hasher) (*Directory, error) {
	if hasher == nil {
		return nil, errors.New("server: nil password hasher")
	}
	dummy, err := hasher.Hash("sessiond-unknown-user")
	if err != nil {
		return nil, fmt.Errorf("server: prepare directory: %w", err)
	}
	return &Directory{
		hasher: hasher,
		users:  make(map[string]string),
		dummy:  dummy,
	}, nil
}

// NewDirectoryFromConfig seeds a Directory from configured users.
func NewDirectoryFromConfig(hasher password.Hasher, users []config.UserConfig) (*Directory, error) {
	d, err := NewDirectory(hasher)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			err = d.AddHash(u.Username, u.PasswordHash)
		} else {
			err = d.Add(u.Username, u.Password)
		}
		if err != nil {
			return nil, fmt.Errorf("server: seed user %q: %w", u.Username, err)
		}
	}
	return d, nil
}

// Add hashes plaintext and stores it for username.
func (d *Directory) Add(username, plaintext string) error {
	hash, err := d.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	return d.AddHash(username, hash)
}

// AddHash stores an existing PHC hash for username.
func (d *Directory) AddHash(username, hash string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("empty username")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[username]; ok {
		return ErrDuplicateUser
	}
	d.users[username] = hash
	return nil
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Verify reports whether plaintext matches the stored hash for username.
func (d *Directory) Verify(username, plaintext string) (bool, error) {
	d.mu.RLock()
	hash, ok := d.users[username]
	d.mu.RUnlock()

	if !ok {
		_, _ = d.hasher.Verify(plaintext, d.dummy)
		return false, nil
	}
	return d.hasher.Verify(plaintext, hash)
}
