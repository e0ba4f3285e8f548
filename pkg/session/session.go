// Package session models a bounded delegation of signing authority: a
// Merkle allow-list of policies, an expiry and the key allowed to sign.
package session

import (
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/merkle"
	"github.com/cyphera/cyphera-session/pkg/policy"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/pkg/errors"
)

const (
	DomainName    = "SessionAccount.session"
	DomainVersion = "1"

	TypeString = `"Session"("Expires At":"timestamp","Allowed Methods":"merkletree","Metadata":"string","Session Key":"felt")`

	// WildcardSentinel replaces the allow-list root of an unrestricted
	// session.
	WildcardSentinel = "wildcard-policy"
)

var (
	typeHash      = typedhash.TypeHash(TypeString)
	domainVersion = cairo.MustShortString(DomainVersion)

	// WildcardRoot is the allowed_policies_root of a wildcard session.
	WildcardRoot = cairo.MustShortString(WildcardSentinel)

	// ErrNoPolicies is returned by New for an empty policy list. An
	// unrestricted session must be asked for explicitly with NewWildcard.
	ErrNoPolicies = errors.New("session has no policies")
)

// Session is immutable once built. Rebuilding means a new session, a new
// authorization and, if the old one was registered, revoking it.
type Session struct {
	policies []policy.Policy
	leaves   []felt.Felt
	set      *policy.Set
	wildcard bool
	metadata string

	expiresAt       uint64
	root            felt.Felt
	metadataHash    felt.Felt
	sessionKeyGUID  felt.Felt
	guardianKeyGUID felt.Felt
}

// Option customizes a session at construction.
type Option func(*Session)

// WithGuardian records the guardian key that co-signs session actions.
func WithGuardian(guid felt.Felt) Option {
	return func(s *Session) { s.guardianKeyGUID = guid }
}

// WithMetadata attaches free-form metadata (typically JSON) whose hash is
// part of the signed session.
func WithMetadata(metadata string) Option {
	return func(s *Session) { s.metadata = metadata }
}

// New builds a session restricted to policies, in the given order.
func New(policies []policy.Policy, expiresAt uint64, sessionKeyGUID felt.Felt, opts ...Option) (*Session, error) {
	if len(policies) == 0 {
		return nil, ErrNoPolicies
	}
	s := &Session{
		policies:       append([]policy.Policy(nil), policies...),
		expiresAt:      expiresAt,
		sessionKeyGUID: sessionKeyGUID,
	}
	s.leaves = policy.Leaves(s.policies)
	s.set = policy.NewSet(s.policies)

	root, err := merkle.Root(s.leaves)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute allowed policies root")
	}
	s.root = root

	s.apply(opts)
	return s, nil
}

// NewWildcard builds an unrestricted session. It is for interactive,
// owner-equivalent use only and is never accepted for relayed execution.
func NewWildcard(expiresAt uint64, sessionKeyGUID felt.Felt, opts ...Option) *Session {
	s := &Session{
		wildcard:       true,
		expiresAt:      expiresAt,
		sessionKeyGUID: sessionKeyGUID,
		root:           WildcardRoot,
		set:            policy.NewSet(nil),
	}
	s.apply(opts)
	return s
}

func (s *Session) apply(opts []Option) {
	for _, opt := range opts {
		opt(s)
	}
	s.metadataHash = typedhash.HashString(s.metadata)
}

// Policies returns a copy of the policy list.
func (s *Session) Policies() []policy.Policy {
	return append([]policy.Policy(nil), s.policies...)
}

func (s *Session) IsWildcard() bool               { return s.wildcard }
func (s *Session) ExpiresAt() uint64              { return s.expiresAt }
func (s *Session) AllowedPoliciesRoot() felt.Felt { return s.root }
func (s *Session) MetadataHash() felt.Felt        { return s.metadataHash }
func (s *Session) Metadata() string               { return s.metadata }
func (s *Session) SessionKeyGUID() felt.Felt      { return s.sessionKeyGUID }
func (s *Session) GuardianKeyGUID() felt.Felt     { return s.guardianKeyGUID }

// Expired reports whether now is at or past the expiry. The verifier
// enforces expiry; this is informational.
func (s *Session) Expired(now time.Time) bool {
	unix := now.Unix()
	return unix >= 0 && uint64(unix) >= s.expiresAt
}

// StructHash is the typed-data hash of the session.
func (s *Session) StructHash() felt.Felt {
	return typedhash.HashStruct(typeHash,
		cairo.FeltFromUint64(s.expiresAt),
		s.root,
		s.metadataHash,
		s.sessionKeyGUID,
		s.guardianKeyGUID,
	)
}

// Domain is the typed-data domain sessions are signed under.
func Domain(chainID felt.Felt) typedhash.Domain {
	return typedhash.NewDomain(DomainName, domainVersion, chainID)
}

// MessageHash is what the owner signs to authorize the session for
// account on chainID.
func (s *Session) MessageHash(chainID, account felt.Felt) (felt.Felt, error) {
	return typedhash.MessageHash(Domain(chainID), account, s.StructHash())
}

// Allows reports whether p is covered. Wildcard sessions allow everything.
func (s *Session) Allows(p policy.Policy) bool {
	return s.wildcard || s.set.Contains(p)
}

// ProvedPolicy is a policy and its inclusion proof.
type ProvedPolicy struct {
	Policy policy.Policy
	Proof  []felt.Felt
}

// Prove returns the inclusion proof for p. A policy outside the list
// yields a *policy.NotAllowedError. Wildcard sessions carry no tree; they
// return an empty proof.
func (s *Session) Prove(p policy.Policy) (ProvedPolicy, error) {
	if s.wildcard {
		return ProvedPolicy{Policy: p}, nil
	}
	idx, ok := s.set.IndexOf(p)
	if !ok {
		return ProvedPolicy{}, &policy.NotAllowedError{Policy: p}
	}
	proof, err := merkle.ComputeProof(s.leaves, idx)
	if err != nil {
		return ProvedPolicy{}, err
	}
	if !merkle.Verify(s.root, s.leaves[idx], proof) {
		return ProvedPolicy{}, errors.Wrapf(merkle.ErrProofInconsistency, "policy %s at index %d", p, idx)
	}
	return ProvedPolicy{Policy: p, Proof: proof}, nil
}

// Serialize returns the on-chain Session struct layout.
func (s *Session) Serialize() []felt.Felt {
	return []felt.Felt{
		cairo.FeltFromUint64(s.expiresAt),
		s.root,
		s.metadataHash,
		s.sessionKeyGUID,
		s.guardianKeyGUID,
	}
}
