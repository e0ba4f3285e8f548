package account_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/mocks"
	"github.com/cyphera/cyphera-session/pkg/account"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/merkle"
	"github.com/cyphera/cyphera-session/pkg/policy"
	"github.com/cyphera/cyphera-session/pkg/session"
	"github.com/cyphera/cyphera-session/pkg/signer"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var (
	tokenContract = cairo.FeltFromUint64(0x123)
	dexContract   = cairo.FeltFromUint64(0x456)
)

type sessionFixture struct {
	owner    *signer.StarknetSigner
	key      *signer.SessionKey
	session  *session.Session
	auth     session.Authorization
	registry *session.Registry
	account  *account.SessionAccount
}

func newSessionFixture(t *testing.T, opts ...account.SessionOption) *sessionFixture {
	t.Helper()
	ctx := context.Background()

	owner, err := signer.GenerateStarknetSigner()
	require.NoError(t, err)
	key, err := signer.GenerateSessionKey()
	require.NoError(t, err)

	sess, err := session.New([]policy.Policy{
		policy.NewCallPolicy(tokenContract, "transfer"),
		policy.NewCallPolicy(dexContract, "approve"),
	}, math.MaxUint64, key.GUID())
	require.NoError(t, err)

	registry := session.NewRegistry(zap.NewNop())
	ownerAccount, err := account.NewOwnerAccount(accountAddress, chainID, owner, account.WithRegistry(registry))
	require.NoError(t, err)
	auth, err := ownerAccount.AuthorizeSession(ctx, sess)
	require.NoError(t, err)

	opts = append([]account.SessionOption{
		account.WithSessionRegistry(registry),
		account.WithSessionLogger(zap.NewNop()),
	}, opts...)
	sa, err := account.NewSessionAccount(accountAddress, chainID, sess, auth, key, opts...)
	require.NoError(t, err)

	return &sessionFixture{
		owner:    owner,
		key:      key,
		session:  sess,
		auth:     auth,
		registry: registry,
		account:  sa,
	}
}

// decodedToken splits a session signature back into its parts.
type decodedToken struct {
	session       []felt.Felt
	cache         felt.Felt
	authorization []felt.Felt
	sessionSig    signer.Signature
	guardianSig   signer.Signature
	proofs        [][]felt.Felt
}

func decodeToken(t *testing.T, sig []felt.Felt) decodedToken {
	t.Helper()
	require.True(t, session.IsTokenSignature(sig))
	r := sig[1:]
	next := func(n int) []felt.Felt {
		require.GreaterOrEqual(t, len(r), n)
		out := r[:n]
		r = r[n:]
		return out
	}
	length := func() int {
		v := next(1)[0].Uint64()
		return int(v)
	}
	starknetSig := func() signer.Signature {
		f := next(4)
		return signer.Signature{Kind: signer.Kind(f[0].Uint64()), Payload: f[1:]}
	}

	var d decodedToken
	d.session = next(5)
	d.cache = next(1)[0]
	d.authorization = next(length())
	d.sessionSig = starknetSig()
	d.guardianSig = starknetSig()
	for n := length(); n > 0; n-- {
		d.proofs = append(d.proofs, next(length()))
	}
	require.Empty(t, r)
	return d
}

func TestSessionAccount_SignExecution(t *testing.T) {
	f := newSessionFixture(t)
	calls := []cairo.Call{cairo.NewCall(tokenContract, "transfer", cairo.FeltFromUint64(1), cairo.FeltFromUint64(100))}

	sig, err := f.account.SignExecution(context.Background(), txHash, calls)
	require.NoError(t, err)

	d := decodeToken(t, sig)
	assert.Equal(t, f.session.Serialize(), d.session)
	assert.True(t, d.cache.IsZero())
	assert.Equal(t, f.auth.Felts(), d.authorization)
	assert.True(t, d.guardianSig.IsZero())

	require.Len(t, d.proofs, 1)
	leaf := policy.FromCall(calls[0]).MerkleLeaf()
	assert.Equal(t, f.session.AllowedPoliciesRoot(), merkle.ComputeRoot(leaf, d.proofs[0]))

	sessionHash, err := f.session.MessageHash(chainID, accountAddress)
	require.NoError(t, err)
	ok, err := f.key.Verify(typedhash.HashMany(txHash, sessionHash), d.sessionSig)
	require.NoError(t, err)
	assert.True(t, ok)

	owner := f.auth.Felts()
	require.Len(t, owner, 5)
	ok, err = f.owner.Verify(sessionHash, signer.Signature{Kind: signer.KindStarknet, Payload: owner[2:]})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionAccount_MultiCallProofs(t *testing.T) {
	f := newSessionFixture(t)
	calls := []cairo.Call{
		cairo.NewCall(dexContract, "approve"),
		cairo.NewCall(tokenContract, "transfer"),
	}

	sig, err := f.account.SignExecution(context.Background(), txHash, calls)
	require.NoError(t, err)

	d := decodeToken(t, sig)
	require.Len(t, d.proofs, 2)
	for i, c := range calls {
		assert.True(t, merkle.Verify(f.session.AllowedPoliciesRoot(), policy.FromCall(c).MerkleLeaf(), d.proofs[i]))
	}
}

func TestSessionAccount_PolicyNotAllowed(t *testing.T) {
	f := newSessionFixture(t)
	calls := []cairo.Call{
		cairo.NewCall(tokenContract, "transfer"),
		cairo.NewCall(tokenContract, "burn"),
	}

	_, err := f.account.SignExecution(context.Background(), txHash, calls)
	require.Error(t, err)
	assert.True(t, errors.Is(err, policy.ErrPolicyNotAllowed))

	var notAllowed *policy.NotAllowedError
	require.True(t, errors.As(err, &notAllowed))
	assert.Equal(t, "burn", notAllowed.Entrypoint)
	assert.True(t, strings.Contains(err.Error(), `"burn"`))
	assert.True(t, strings.Contains(err.Error(), tokenContract.String()))
}

func TestSessionAccount_Revoked(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.account.MarkRegistered(f.owner.GUID()))
	assert.True(t, f.account.Authorization().IsRegistered())
	require.NoError(t, f.registry.Revoke(f.session))

	_, err := f.account.SignExecution(context.Background(), txHash, []cairo.Call{cairo.NewCall(tokenContract, "transfer")})
	assert.True(t, errors.Is(err, session.ErrSessionRevoked))
}

func TestSessionAccount_RegisteredAuthorization(t *testing.T) {
	f := newSessionFixture(t, account.WithCacheAuthorization(true))
	require.NoError(t, f.account.MarkRegistered(f.owner.GUID()))
	assert.Equal(t, session.StateRegistered, f.registry.State(f.session))

	sig, err := f.account.SignExecution(context.Background(), txHash, []cairo.Call{cairo.NewCall(tokenContract, "transfer")})
	require.NoError(t, err)

	d := decodeToken(t, sig)
	assert.Equal(t, cairo.FeltFromUint64(1), d.cache)
	assert.Equal(t, []felt.Felt{cairo.MustShortString("authorization-by-registered"), f.owner.GUID()}, d.authorization)
}

func TestSessionAccount_SignTypedMessage(t *testing.T) {
	ctx := context.Background()
	key, err := signer.GenerateSessionKey()
	require.NoError(t, err)

	domain := typedhash.NewDomain("Game", cairo.MustShortString("1"), chainID)
	const moveType = `"Move"("x":"felt","y":"felt")`
	allowed, err := policy.FromTypedData(policy.NewTypedMessage(domain, moveType))
	require.NoError(t, err)

	sess, err := session.New([]policy.Policy{allowed, policy.NewCallPolicy(tokenContract, "transfer")}, math.MaxUint64, key.GUID())
	require.NoError(t, err)
	auth := session.RegisteredAuthorization(cairo.FeltFromUint64(0x0e))
	sa, err := account.NewSessionAccount(accountAddress, chainID, sess, auth, key)
	require.NoError(t, err)

	msg := policy.NewTypedMessage(domain, moveType, cairo.FeltFromUint64(3), cairo.FeltFromUint64(4))
	sig, err := sa.SignTypedMessage(ctx, msg)
	require.NoError(t, err)

	d := decodeToken(t, sig)
	require.Len(t, d.proofs, 1)
	assert.True(t, merkle.Verify(sess.AllowedPoliciesRoot(), allowed.MerkleLeaf(), d.proofs[0]))

	msgHash, err := msg.MessageHash(accountAddress)
	require.NoError(t, err)
	sessionHash, err := sess.MessageHash(chainID, accountAddress)
	require.NoError(t, err)
	ok, err := key.Verify(typedhash.HashMany(msgHash, sessionHash), d.sessionSig)
	require.NoError(t, err)
	assert.True(t, ok)

	other := policy.NewTypedMessage(typedhash.NewDomain("Other", cairo.MustShortString("1"), chainID), moveType)
	_, err = sa.SignTypedMessage(ctx, other)
	assert.True(t, errors.Is(err, policy.ErrPolicyNotAllowed))
}

func TestSessionAccount_Wildcard(t *testing.T) {
	key, err := signer.GenerateSessionKey()
	require.NoError(t, err)
	sess := session.NewWildcard(math.MaxUint64, key.GUID())
	sa, err := account.NewSessionAccount(accountAddress, chainID, sess, session.RegisteredAuthorization(cairo.FeltFromUint64(1)), key)
	require.NoError(t, err)

	sig, err := sa.SignExecution(context.Background(), txHash, []cairo.Call{cairo.NewCall(cairo.FeltFromUint64(0x999), "anything")})
	require.NoError(t, err)

	d := decodeToken(t, sig)
	assert.Equal(t, session.WildcardRoot, d.session[1])
	require.Len(t, d.proofs, 1)
	assert.Empty(t, d.proofs[0])
}

func TestSessionAccount_Guardian(t *testing.T) {
	key, err := signer.GenerateSessionKey()
	require.NoError(t, err)
	guardianGUID := cairo.FeltFromUint64(0x9a)
	sess, err := session.New([]policy.Policy{policy.NewCallPolicy(tokenContract, "transfer")}, math.MaxUint64, key.GUID(), session.WithGuardian(guardianGUID))
	require.NoError(t, err)
	auth := session.RegisteredAuthorization(cairo.FeltFromUint64(1))

	_, err = account.NewSessionAccount(accountAddress, chainID, sess, auth, key)
	assert.True(t, errors.Is(err, account.ErrMissingSigner))

	guardian := mocks.NewMockSignerForTest(t)
	guardian.EXPECT().GUID().Return(guardianGUID).AnyTimes()
	guardian.EXPECT().SignHash(gomock.Any(), gomock.Any()).Return(fixedSignature(7, 8, 9), nil)

	sa, err := account.NewSessionAccount(accountAddress, chainID, sess, auth, key, account.WithGuardianSigner(guardian))
	require.NoError(t, err)

	sig, err := sa.SignExecution(context.Background(), txHash, []cairo.Call{cairo.NewCall(tokenContract, "transfer")})
	require.NoError(t, err)
	d := decodeToken(t, sig)
	assert.Equal(t, fixedSignature(7, 8, 9), d.guardianSig)
}

func TestNewSessionAccount_Validation(t *testing.T) {
	key, err := signer.GenerateSessionKey()
	require.NoError(t, err)
	other, err := signer.GenerateSessionKey()
	require.NoError(t, err)
	sess, err := session.New([]policy.Policy{policy.NewCallPolicy(tokenContract, "transfer")}, math.MaxUint64, key.GUID())
	require.NoError(t, err)
	auth := session.RegisteredAuthorization(cairo.FeltFromUint64(1))

	_, err = account.NewSessionAccount(accountAddress, chainID, sess, auth, other)
	assert.True(t, errors.Is(err, account.ErrSignerMismatch))

	_, err = account.NewSessionAccount(accountAddress, chainID, sess, session.Authorization{}, key)
	assert.True(t, errors.Is(err, cairo.ErrEncoding))

	_, err = account.NewSessionAccount(accountAddress, chainID, sess, auth, nil)
	assert.True(t, errors.Is(err, account.ErrMissingSigner))
}

func TestSessionAccount_CancelledContext(t *testing.T) {
	f := newSessionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.account.SignExecution(ctx, txHash, []cairo.Call{cairo.NewCall(tokenContract, "transfer")})
	require.Error(t, err)
	var se *signer.SigningError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
}
