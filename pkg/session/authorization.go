package session

import (
	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/pkg/errors"
)

// RegisteredMarker leads an authorization that points at a session the
// owner already registered on chain instead of carrying a signature.
const RegisteredMarker = "authorization-by-registered"

var registeredMarker = cairo.MustShortString(RegisteredMarker)

// Authorization is the owner's (and guardian's) consent to a session:
// either their encoded signatures over the session message hash, or the
// registered marker followed by the owner GUID.
type Authorization struct {
	felts []felt.Felt
}

// SignedAuthorization wraps encoded owner signatures.
func SignedAuthorization(signatures []felt.Felt) (Authorization, error) {
	a, err := ParseAuthorization(signatures)
	if err != nil {
		return Authorization{}, err
	}
	if a.IsRegistered() {
		return Authorization{}, errors.Wrap(cairo.ErrEncoding, "signed authorization starts with the registered marker")
	}
	return a, nil
}

// RegisteredAuthorization refers to a session registered by ownerGUID.
func RegisteredAuthorization(ownerGUID felt.Felt) Authorization {
	return Authorization{felts: []felt.Felt{registeredMarker, ownerGUID}}
}

// ParseAuthorization accepts both authorization forms.
func ParseAuthorization(felts []felt.Felt) (Authorization, error) {
	if len(felts) == 0 {
		return Authorization{}, errors.Wrap(cairo.ErrEncoding, "empty session authorization")
	}
	if felts[0].Equal(&registeredMarker) && len(felts) != 2 {
		return Authorization{}, errors.Wrapf(cairo.ErrEncoding, "registered authorization has %d felts, want 2", len(felts))
	}
	return Authorization{felts: append([]felt.Felt(nil), felts...)}, nil
}

// IsRegistered reports whether this is the registered form.
func (a Authorization) IsRegistered() bool {
	return len(a.felts) == 2 && a.felts[0].Equal(&registeredMarker)
}

// OwnerGUID returns the owner of a registered authorization.
func (a Authorization) OwnerGUID() (felt.Felt, bool) {
	if !a.IsRegistered() {
		return felt.Zero, false
	}
	return a.felts[1], true
}

// Felts returns a copy of the encoded authorization.
func (a Authorization) Felts() []felt.Felt {
	return append([]felt.Felt(nil), a.felts...)
}

// IsZero reports whether the authorization is unset.
func (a Authorization) IsZero() bool {
	return len(a.felts) == 0
}
