package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usikolabs/usiko-middleware/pkg/events"
)

// MockNFTRegistry is a mock implementation of NFTRegistry
type MockNFTRegistry struct {
	CollectionFunc  func() common.Address
	OwnerOfFunc     func(serial int64) (common.Address, error)
	GetApprovedFunc func(serial int64) (common.Address, error)
	TransferNFTFunc func(ctx context.Context, caller common.Address, serial int64, to common.Address) error
}

func (m *MockNFTRegistry) Collection() common.Address {
	if m.CollectionFunc != nil {
		return m.CollectionFunc()
	}
	return common.Address{}
}

func (m *MockNFTRegistry) OwnerOf(serial int64) (common.Address, error) {
	if m.OwnerOfFunc != nil {
		return m.OwnerOfFunc(serial)
	}
	return common.Address{}, nil
}

func (m *MockNFTRegistry) GetApproved(serial int64) (common.Address, error) {
	if m.GetApprovedFunc != nil {
		return m.GetApprovedFunc(serial)
	}
	return common.Address{}, nil
}

func (m *MockNFTRegistry) TransferNFT(ctx context.Context, caller common.Address, serial int64, to common.Address) error {
	if m.TransferNFTFunc != nil {
		return m.TransferNFTFunc(ctx, caller, serial, to)
	}
	return nil
}

// MockRoyaltyReader is a mock implementation of RoyaltyReader
type MockRoyaltyReader struct {
	RoyaltyOfFunc func(collection common.Address) (common.Address, uint16)
}

func (m *MockRoyaltyReader) RoyaltyOf(collection common.Address) (common.Address, uint16) {
	if m.RoyaltyOfFunc != nil {
		return m.RoyaltyOfFunc(collection)
	}
	return common.Address{}, 0
}

// MockPaymentRail is a mock implementation of PaymentRail that records every
// transfer it is asked to make.
type MockPaymentRail struct {
	TransferFunc func(from, to common.Address, amount *big.Int) error
	Transfers    []RecordedTransfer
}

// RecordedTransfer is one payment observed by the mock rail
type RecordedTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (m *MockPaymentRail) Transfer(from, to common.Address, amount *big.Int) error {
	if m.TransferFunc != nil {
		if err := m.TransferFunc(from, to, amount); err != nil {
			return err
		}
	}
	m.Transfers = append(m.Transfers, RecordedTransfer{
		From:   from,
		To:     to,
		Amount: new(big.Int).Set(amount),
	})
	return nil
}

// recordingEmitter collects emitted events for assertions
type recordingEmitter struct {
	kinds    []events.Kind
	payloads []any
}

func (r *recordingEmitter) Emit(kind events.Kind, payload any) {
	r.kinds = append(r.kinds, kind)
	r.payloads = append(r.payloads, payload)
}

func (r *recordingEmitter) last() (events.Kind, any) {
	if len(r.kinds) == 0 {
		return "", nil
	}
	return r.kinds[len(r.kinds)-1], r.payloads[len(r.payloads)-1]
}
