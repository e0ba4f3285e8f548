package mocks

import (
	"context"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/outside"
	"github.com/stretchr/testify/mock"
)

// MockRelayer provides a mock for outside.Relayer
type MockRelayer struct {
	mock.Mock
}

func (m *MockRelayer) Relay(ctx context.Context, account felt.Felt, signed *outside.SignedEnvelope) (felt.Felt, error) {
	args := m.Called(ctx, account, signed)
	return args.Get(0).(felt.Felt), args.Error(1)
}
