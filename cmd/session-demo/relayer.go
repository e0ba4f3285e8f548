package main

import (
	"context"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/outside"
	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
)

// logRelayer stands in for a paymaster: it logs the call it would submit
// and returns the call hash in place of a transaction hash.
type logRelayer struct {
	address felt.Felt
	logger  *zap.Logger
}

func (r *logRelayer) Relay(ctx context.Context, account felt.Felt, signed *outside.SignedEnvelope) (felt.Felt, error) {
	if err := ctx.Err(); err != nil {
		return felt.Zero, err
	}
	if !outside.CanBeCalledBy(signed.Envelope, r.address) {
		return felt.Zero, errNotCaller
	}

	call := signed.Call(account)
	r.logger.Info("Relaying outside execution",
		zap.String("entrypoint", call.Entrypoint),
		zap.String("message_hash", signed.Hash.String()),
		zap.Int("calldata_len", len(call.Calldata)),
		zap.Int("signature_len", len(signed.Signature)),
	)
	r.logger.Debug("Relayed call", zap.String("call", spew.Sdump(call)))
	return outside.CallHash(call), nil
}
