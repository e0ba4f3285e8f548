package signer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin = "https://x.cartridge.gg"
	testRPID   = "cartridge.gg"
)

// passkeyFixture is built per test; nothing is shared between tests.
type passkeyFixture struct {
	device *signer.VirtualAuthenticator
	signer *signer.WebauthnSigner
}

func newPasskeyFixture(t *testing.T) passkeyFixture {
	t.Helper()
	device, err := signer.NewVirtualAuthenticator(testOrigin)
	require.NoError(t, err)
	s, err := signer.NewWebauthnSigner(device, device.PublicKey(), testOrigin, testRPID)
	require.NoError(t, err)
	return passkeyFixture{device: device, signer: s}
}

// authenticatorFunc adapts a function to signer.Authenticator.
type authenticatorFunc func(ctx context.Context, rpID string, challenge []byte) (*signer.Assertion, error)

func (f authenticatorFunc) GetAssertion(ctx context.Context, rpID string, challenge []byte) (*signer.Assertion, error) {
	return f(ctx, rpID, challenge)
}

func TestWebauthnSigner_Sign(t *testing.T) {
	fx := newPasskeyFixture(t)

	sig, err := fx.signer.SignHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, signer.KindWebauthn, sig.Kind)

	// signer data: origin_len, origin bytes, rp hash (2), pubkey (2)
	assert.Equal(t, cairo.FeltFromUint64(uint64(len(testOrigin))), sig.Payload[0])
	sigStart := 1 + len(testOrigin) + 4
	// cross_origin, outro span, flags, sign_count, r (2), s (2), y_parity, sha256 impl
	require.Len(t, sig.Payload, sigStart+10)
	assert.True(t, sig.Payload[sigStart].IsZero(), "cross origin")
	// outro is the closing brace only, which is trimmed
	assert.Equal(t, cairo.FeltFromUint64(0), sig.Payload[sigStart+1])
	assert.Equal(t, cairo.FeltFromUint64(0x05), sig.Payload[sigStart+2])
	assert.Equal(t, cairo.FeltFromUint64(1), sig.Payload[sigStart+3])

	// counter advances per assertion
	sig2, err := fx.signer.SignHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, cairo.FeltFromUint64(2), sig2.Payload[sigStart+3])
}

func TestWebauthnSigner_GUIDBindsOrigin(t *testing.T) {
	fx := newPasskeyFixture(t)
	other, err := signer.NewWebauthnSigner(fx.device, fx.device.PublicKey(), "https://evil.example", testRPID)
	require.NoError(t, err)
	assert.NotEqual(t, fx.signer.GUID(), other.GUID())
}

func TestWebauthnSigner_RejectsWrongOrigin(t *testing.T) {
	device, err := signer.NewVirtualAuthenticator("https://evil.example")
	require.NoError(t, err)
	s, err := signer.NewWebauthnSigner(device, device.PublicKey(), testOrigin, testRPID)
	require.NoError(t, err)

	_, err = s.SignHash(context.Background(), testHash)
	require.Error(t, err)
	assert.True(t, errors.Is(err, signer.ErrSigningFailure))
	assert.True(t, errors.Is(err, signer.ErrMalformedSignature))
}

func TestWebauthnSigner_RejectsForeignKey(t *testing.T) {
	fx := newPasskeyFixture(t)
	stranger, err := signer.NewVirtualAuthenticator(testOrigin)
	require.NoError(t, err)
	s, err := signer.NewWebauthnSigner(stranger, fx.device.PublicKey(), testOrigin, testRPID)
	require.NoError(t, err)

	_, err = s.SignHash(context.Background(), testHash)
	assert.True(t, errors.Is(err, signer.ErrMalformedSignature))
}

func TestWebauthnSigner_PromptCancelledIsTemporary(t *testing.T) {
	fx := newPasskeyFixture(t)
	cancelled := authenticatorFunc(func(context.Context, string, []byte) (*signer.Assertion, error) {
		return nil, signer.ErrPromptCancelled
	})
	s, err := signer.NewWebauthnSigner(cancelled, fx.device.PublicKey(), testOrigin, testRPID)
	require.NoError(t, err)

	_, err = s.SignHash(context.Background(), testHash)
	var se *signer.SigningError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
}

func TestWebauthnSigner_DiscardsLateAssertion(t *testing.T) {
	fx := newPasskeyFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	late := authenticatorFunc(func(ctx context.Context, rpID string, challenge []byte) (*signer.Assertion, error) {
		a, err := fx.device.GetAssertion(ctx, rpID, challenge)
		cancel()
		return a, err
	})
	s, err := signer.NewWebauthnSigner(late, fx.device.PublicKey(), testOrigin, testRPID)
	require.NoError(t, err)

	_, err = s.SignHash(ctx, testHash)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, signer.ErrSigningFailure))
}

func TestNewWebauthnSigner_Validation(t *testing.T) {
	fx := newPasskeyFixture(t)
	_, err := signer.NewWebauthnSigner(fx.device, nil, testOrigin, testRPID)
	assert.Error(t, err)
	_, err = signer.NewWebauthnSigner(fx.device, fx.device.PublicKey(), "", testRPID)
	assert.Error(t, err)
}
