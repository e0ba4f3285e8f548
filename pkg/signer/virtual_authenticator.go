package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
)

// VirtualAuthenticator is a software passkey. It produces the same
// assertion shape a platform authenticator would, for tests and for
// environments without a device. Each instance owns its key and counter.
type VirtualAuthenticator struct {
	mu        sync.Mutex
	key       *ecdsa.PrivateKey
	origin    string
	signCount uint32
}

// NewVirtualAuthenticator creates a passkey for origin.
func NewVirtualAuthenticator(origin string) (*VirtualAuthenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate passkey")
	}
	return &VirtualAuthenticator{key: key, origin: origin}, nil
}

// PublicKey returns the passkey's public key.
func (v *VirtualAuthenticator) PublicKey() *ecdsa.PublicKey {
	return &v.key.PublicKey
}

// GetAssertion signs challenge as a WebAuthn get() would.
func (v *VirtualAuthenticator) GetAssertion(ctx context.Context, rpID string, challenge []byte) (*Assertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.signCount++
	count := v.signCount
	v.mu.Unlock()

	rpIDHash := sha256.Sum256([]byte(rpID))
	authData := make([]byte, minAuthenticatorDataLen)
	copy(authData, rpIDHash[:])
	authData[32] = flagUserPresent | flagUserVerified
	binary.BigEndian.PutUint32(authData[33:], count)

	clientData := append(clientDataPrefix(challenge, v.origin), '}')

	r, s, err := ecdsa.Sign(rand.Reader, v.key, webauthnDigest(authData, clientData))
	if err != nil {
		return nil, errors.Wrap(err, "passkey signing failed")
	}
	return &Assertion{
		AuthenticatorData: authData,
		ClientDataJSON:    clientData,
		R:                 r,
		S:                 s,
	}, nil
}
