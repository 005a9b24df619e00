// Package keyring provides secure credential storage using the system keyring.
//
// Vortix never persists OpenVPN usernames or passwords in profile files;
// profiles that declare auth-user-pass keep their credentials here.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	zkeyring "github.com/zalando/go-keyring"
)

// ServiceName is the identifier used for storing credentials in the system keyring.
const ServiceName = "vortix"

var (
	// ErrCredentialNotFound is returned when no credential exists for a profile.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrInvalidProfileID is returned when a profile ID is not a valid UUID.
	ErrInvalidProfileID = errors.New("invalid profile ID: must be a valid UUID")
)

// Credentials is an OpenVPN username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Store defines the interface for credential storage operations.
type Store interface {
	Save(profileID string, creds Credentials) error
	Get(profileID string) (Credentials, error)
	Delete(profileID string) error
}

// SystemKeyring implements Store using the system keyring.
type SystemKeyring struct{}

// NewSystemKeyring creates a new SystemKeyring instance.
func NewSystemKeyring() *SystemKeyring {
	return &SystemKeyring{}
}

// Save stores credentials for the given profile ID in the system keyring.
func (s *SystemKeyring) Save(profileID string, creds Credentials) error {
	if err := validateProfileID(profileID); err != nil {
		return err
	}
	// Username must not contain the separator; newlines are already
	// rejected by openvpn auth files anyway.
	if strings.ContainsRune(creds.Username, '\n') {
		return errors.New("username must not contain newlines")
	}
	if err := zkeyring.Set(ServiceName, profileID, creds.Username+"\n"+creds.Password); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Get retrieves the credentials for the given profile ID.
// Returns ErrCredentialNotFound if none exist.
func (s *SystemKeyring) Get(profileID string) (Credentials, error) {
	if err := validateProfileID(profileID); err != nil {
		return Credentials{}, err
	}
	secret, err := zkeyring.Get(ServiceName, profileID)
	if err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return Credentials{}, ErrCredentialNotFound
		}
		return Credentials{}, fmt.Errorf("retrieve credential: %w", err)
	}

	username, password, _ := strings.Cut(secret, "\n")
	return Credentials{Username: username, Password: password}, nil
}

// Delete removes the credentials for the given profile ID.
// Idempotent: a missing credential is not an error.
func (s *SystemKeyring) Delete(profileID string) error {
	if err := validateProfileID(profileID); err != nil {
		return err
	}
	if err := zkeyring.Delete(ServiceName, profileID); err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// validateProfileID keeps keyring keys consistent with the profile
// store's UUID naming.
func validateProfileID(profileID string) error {
	if _, err := uuid.Parse(profileID); err != nil {
		return ErrInvalidProfileID
	}
	return nil
}
