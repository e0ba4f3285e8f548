package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockSignerForTest creates a new mock Signer for testing
func NewMockSignerForTest(t *testing.T) *MockSigner {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockSigner(ctrl)
}
