package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/pkg/errors"
)

// authenticatorData is rpIdHash(32) | flags(1) | signCount(4).
const minAuthenticatorDataLen = 37

// Assertion is what a WebAuthn authenticator returns for a get() call.
type Assertion struct {
	AuthenticatorData []byte
	ClientDataJSON    []byte
	R, S              *big.Int
}

// Authenticator is the device (or platform) holding a passkey. Talking to
// real hardware is the caller's concern; VirtualAuthenticator is a
// software implementation.
type Authenticator interface {
	GetAssertion(ctx context.Context, rpID string, challenge []byte) (*Assertion, error)
}

// WebauthnSigner signs through a passkey authenticator.
type WebauthnSigner struct {
	authenticator Authenticator
	publicKey     *ecdsa.PublicKey
	publicKeyX    [32]byte
	origin        string
	rpID          string
	guid          felt.Felt
}

// NewWebauthnSigner binds an authenticator to the passkey's public key,
// origin and relying party id.
func NewWebauthnSigner(authenticator Authenticator, publicKey *ecdsa.PublicKey, origin, rpID string) (*WebauthnSigner, error) {
	if publicKey == nil || publicKey.Curve != elliptic.P256() {
		return nil, errors.New("webauthn signer requires a P-256 public key")
	}
	if origin == "" || rpID == "" {
		return nil, errors.New("webauthn signer requires origin and rp id")
	}
	var x [32]byte
	publicKey.X.FillBytes(x[:])
	return &WebauthnSigner{
		authenticator: authenticator,
		publicKey:     publicKey,
		publicKeyX:    x,
		origin:        origin,
		rpID:          rpID,
		guid:          WebauthnGUID(origin, rpID, x),
	}, nil
}

func (s *WebauthnSigner) GUID() felt.Felt { return s.guid }

// SignHash prompts the authenticator with hash as the challenge. A
// signature that arrives after ctx is done is discarded.
func (s *WebauthnSigner) SignHash(ctx context.Context, hash felt.Felt) (Signature, error) {
	name := KindWebauthn.String()
	if err := ctx.Err(); err != nil {
		return Signature{}, signingError(name, err)
	}

	challenge := hash.Bytes()
	assertion, err := s.authenticator.GetAssertion(ctx, s.rpID, challenge[:])
	if err != nil {
		return Signature{}, signingError(name, err)
	}
	if err := ctx.Err(); err != nil {
		return Signature{}, signingError(name, errors.Wrap(err, "late assertion discarded"))
	}

	payload, err := s.encodeAssertion(challenge[:], assertion)
	if err != nil {
		return Signature{}, signingError(name, err)
	}
	return Signature{Kind: KindWebauthn, Payload: payload}, nil
}

func (s *WebauthnSigner) encodeAssertion(challenge []byte, a *Assertion) ([]felt.Felt, error) {
	if a == nil || a.R == nil || a.S == nil {
		return nil, errors.Wrap(ErrMalformedSignature, "empty assertion")
	}
	authData := a.AuthenticatorData
	if len(authData) < minAuthenticatorDataLen {
		return nil, errors.Wrapf(ErrMalformedSignature, "authenticator data is %d bytes", len(authData))
	}
	rpIDHash := sha256.Sum256([]byte(s.rpID))
	if !bytes.Equal(authData[:32], rpIDHash[:]) {
		return nil, errors.Wrap(ErrMalformedSignature, "rp id hash mismatch")
	}
	flags := authData[32]
	signCount := binary.BigEndian.Uint32(authData[33:37])

	prefix := clientDataPrefix(challenge, s.origin)
	if !bytes.HasPrefix(a.ClientDataJSON, prefix) {
		return nil, errors.Wrap(ErrMalformedSignature, "client data does not match challenge and origin")
	}
	outro := bytes.TrimSuffix(a.ClientDataJSON[len(prefix):], []byte("}"))

	digest := webauthnDigest(authData, a.ClientDataJSON)
	if !ecdsa.Verify(s.publicKey, digest, a.R, a.S) {
		return nil, errors.Wrap(ErrMalformedSignature, "assertion signature does not verify")
	}

	r := new(big.Int).Set(a.R)
	sv := normalizeLowS(a.S)
	parity, err := p256YParity(s.publicKey, digest, r, sv)
	if err != nil {
		return nil, err
	}

	rLow, rHigh, err := cairo.SplitU256(r)
	if err != nil {
		return nil, err
	}
	sLow, sHigh, err := cairo.SplitU256(sv)
	if err != nil {
		return nil, err
	}

	outroFelts := make([]felt.Felt, len(outro))
	for i, b := range outro {
		outroFelts[i] = cairo.FeltFromUint64(uint64(b))
	}

	out := webauthnSignerData(s.origin, s.rpID, s.publicKeyX)
	out = append(out, cairo.Bool(false))
	out = append(out, cairo.Span(outroFelts)...)
	out = append(out,
		cairo.FeltFromUint64(uint64(flags)),
		cairo.FeltFromUint64(uint64(signCount)),
		rLow, rHigh,
		sLow, sHigh,
		cairo.Bool(parity),
		felt.Zero, // sha256 implementation: cairo0
	)
	return out, nil
}

// clientDataPrefix is the part of clientDataJSON the verifier rebuilds
// from the hash and origin.
func clientDataPrefix(challenge []byte, origin string) []byte {
	return []byte(fmt.Sprintf(`{"type":"webauthn.get","challenge":"%s","origin":"%s","crossOrigin":false`,
		base64.RawURLEncoding.EncodeToString(challenge), origin))
}

func webauthnDigest(authData, clientDataJSON []byte) []byte {
	clientHash := sha256.Sum256(clientDataJSON)
	h := sha256.New()
	h.Write(authData)
	h.Write(clientHash[:])
	return h.Sum(nil)
}

func normalizeLowS(s *big.Int) *big.Int {
	n := elliptic.P256().Params().N
	half := new(big.Int).Rsh(n, 1)
	if s.Cmp(half) > 0 {
		return new(big.Int).Sub(n, s)
	}
	return new(big.Int).Set(s)
}

// p256YParity finds the parity of R's y coordinate by recovering the
// public key for each candidate and comparing it with the known one.
func p256YParity(pub *ecdsa.PublicKey, digest []byte, r, s *big.Int) (bool, error) {
	curve := elliptic.P256()
	params := curve.Params()
	p, n := params.P, params.N

	// y^2 = x^3 - 3x + b
	x := new(big.Int).Set(r)
	y2 := new(big.Int).Exp(x, big.NewInt(3), p)
	y2.Sub(y2, new(big.Int).Mul(x, big.NewInt(3)))
	y2.Add(y2, params.B)
	y2.Mod(y2, p)
	y := new(big.Int).ModSqrt(y2, p)
	if y == nil {
		return false, errors.Wrap(ErrMalformedSignature, "r is not an x coordinate on P-256")
	}

	e := new(big.Int).SetBytes(digest)
	e.Mod(e, n)
	rInv := new(big.Int).ModInverse(r, n)
	if rInv == nil {
		return false, errors.Wrap(ErrMalformedSignature, "r has no inverse")
	}
	eGx, eGy := curve.ScalarBaseMult(e.Bytes())
	negEGy := new(big.Int).Sub(p, eGy)
	negEGy.Mod(negEGy, p)

	for _, odd := range []bool{false, true} {
		ry := new(big.Int).Set(y)
		if (ry.Bit(0) == 1) != odd {
			ry.Sub(p, ry)
		}
		sRx, sRy := curve.ScalarMult(x, ry, s.Bytes())
		sumX, sumY := curve.Add(sRx, sRy, eGx, negEGy)
		qx, qy := curve.ScalarMult(sumX, sumY, rInv.Bytes())
		if qx.Cmp(pub.X) == 0 && qy.Cmp(pub.Y) == 0 {
			return odd, nil
		}
	}
	return false, errors.Wrap(ErrMalformedSignature, "could not recover public key")
}
