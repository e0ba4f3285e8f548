// Command session-demo walks through a session key's life: the owner
// authorizes a session, the session key signs an outside execution within
// the session's policies, and a relayer picks it up.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/config"
	"github.com/cyphera/cyphera-session/internal/logger"
	"github.com/cyphera/cyphera-session/pkg/account"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/outside"
	"github.com/cyphera/cyphera-session/pkg/policy"
	"github.com/cyphera/cyphera-session/pkg/session"
	"github.com/cyphera/cyphera-session/pkg/signer"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// STRK token contract.
	tokenAddress = cairo.MustHex("0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d")

	demoAccount = cairo.MustHex("0x0acc")
	demoRelayer = cairo.MustHex("0x07e1a")

	errNotCaller = errors.New("relayer is not the allowed caller")
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.Stage)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("Session demo failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	address := cfg.AccountAddress
	if address.IsZero() {
		address = demoAccount
		logger.Warn("ACCOUNT_ADDRESS not set, using demo address", zap.String("account", address.String()))
	}
	now := time.Now()

	owner, err := signer.GenerateEip191Signer()
	if err != nil {
		return err
	}
	guardian, err := signer.GenerateStarknetSigner()
	if err != nil {
		return err
	}
	sessionKey, err := signer.GenerateSessionKey()
	if err != nil {
		return err
	}
	logger.Info("Signers ready",
		zap.String("owner", owner.Address().Hex()),
		zap.String("guardian_pubkey", feltString(guardian.PublicKey())),
		zap.String("session_key_guid", feltString(sessionKey.GUID())),
	)

	registry := session.NewRegistry(logger.Log)
	acct, err := account.NewGuardedAccount(address, cfg.ChainID, owner, guardian,
		account.WithLogger(logger.Log),
		account.WithRegistry(registry),
	)
	if err != nil {
		return err
	}

	sess, err := session.New(
		[]policy.Policy{
			policy.NewCallPolicy(tokenAddress, "transfer"),
			policy.NewCallPolicy(tokenAddress, "approve"),
		},
		cfg.SessionExpiry(now),
		sessionKey.GUID(),
		session.WithGuardian(guardian.GUID()),
		session.WithMetadata(`{"projectID":"session-demo"}`),
	)
	if err != nil {
		return err
	}

	auth, err := acct.AuthorizeSession(ctx, sess)
	if err != nil {
		return errors.Wrap(err, "owner declined session")
	}
	logger.Info("Session authorized",
		zap.String("root", feltString(sess.AllowedPoliciesRoot())),
		zap.Uint64("expires_at", sess.ExpiresAt()),
		zap.Stringer("state", registry.Status(sess, now)),
	)

	sessionAccount, err := account.NewSessionAccount(address, cfg.ChainID, sess, auth, sessionKey,
		account.WithGuardianSigner(guardian),
		account.WithSessionRegistry(registry),
		account.WithCacheAuthorization(true),
		account.WithSessionLogger(logger.Log),
	)
	if err != nil {
		return err
	}

	builder := outside.NewBuilder(sessionAccount, outside.WithLogger(logger.Log))
	relayer := &logRelayer{address: demoRelayer, logger: logger.Log}
	after, before := cfg.ExecutionWindow(now)

	transfer := cairo.NewCall(tokenAddress, "transfer", demoRelayer, cairo.FeltFromUint64(1_000), felt.Zero)
	env, err := builder.BuildV3(demoRelayer, after, before, []cairo.Call{transfer})
	if err != nil {
		return err
	}
	txHash, err := builder.Submit(ctx, relayer, env)
	if err != nil {
		return err
	}
	logger.Info("Transfer relayed", zap.String("tx_hash", txHash.String()))

	burn := cairo.NewCall(tokenAddress, "burn", cairo.FeltFromUint64(1_000))
	env, err = builder.BuildV3(demoRelayer, after, before, []cairo.Call{burn})
	if err != nil {
		return err
	}
	if _, err := builder.Sign(ctx, env); err != nil {
		logger.Warn("Session refused call outside its policies", zap.Error(err))
	}

	logger.Debug("Session", zap.String("dump", spew.Sdump(sess.Serialize())))
	return nil
}

func feltString(f felt.Felt) string {
	return f.String()
}
