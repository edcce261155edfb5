package testutil

import (
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/babylonchain/btc-bridge/testutil/mocks"
)

// PrepareMockedLedger returns a ledger mock accepting any number of credits
// and releases.
func PrepareMockedLedger(t *testing.T) *mocks.MockLedgerTransfer {
	ctl := gomock.NewController(t)
	mockLedger := mocks.NewMockLedgerTransfer(ctl)

	mockLedger.EXPECT().CreditPegin(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mockLedger.EXPECT().ReleaseSigned(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	return mockLedger
}
