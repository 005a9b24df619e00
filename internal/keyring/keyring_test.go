package keyring

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zkeyring "github.com/zalando/go-keyring"
)

func TestSystemKeyring_RoundTrip(t *testing.T) {
	zkeyring.MockInit()
	s := NewSystemKeyring()
	id := uuid.New().String()

	creds := Credentials{Username: "alice", Password: "s3cret\nwith newline"}
	require.NoError(t, s.Save(id, creds))

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "s3cret\nwith newline", got.Password)

	require.NoError(t, s.Delete(id))
	_, err = s.Get(id)
	assert.True(t, errors.Is(err, ErrCredentialNotFound))
}

func TestSystemKeyring_DeleteIsIdempotent(t *testing.T) {
	zkeyring.MockInit()
	s := NewSystemKeyring()

	assert.NoError(t, s.Delete(uuid.New().String()))
}

func TestSystemKeyring_RejectsInvalidProfileID(t *testing.T) {
	zkeyring.MockInit()
	s := NewSystemKeyring()

	assert.ErrorIs(t, s.Save("../../etc/passwd", Credentials{}), ErrInvalidProfileID)
	_, err := s.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidProfileID)
	assert.ErrorIs(t, s.Delete(""), ErrInvalidProfileID)
}

func TestSystemKeyring_RejectsNewlineInUsername(t *testing.T) {
	zkeyring.MockInit()
	s := NewSystemKeyring()

	err := s.Save(uuid.New().String(), Credentials{Username: "a\nb", Password: "x"})
	assert.Error(t, err)
}
