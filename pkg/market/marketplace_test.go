package market

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/pkg/events"
)

var (
	testOwner           = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testOperator        = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	testFeeReceiver     = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	testSeller          = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testBuyer           = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testRoyaltyReceiver = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testCollection      = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type marketFixture struct {
	mkt     *Marketplace
	nfts    *MockNFTRegistry
	royalty *MockRoyaltyReader
	pay     *MockPaymentRail
	emitter *recordingEmitter
}

func newFixture(t *testing.T) *marketFixture {
	t.Helper()

	nfts := &MockNFTRegistry{
		CollectionFunc: func() common.Address { return testCollection },
		OwnerOfFunc: func(serial int64) (common.Address, error) {
			return testSeller, nil
		},
		GetApprovedFunc: func(serial int64) (common.Address, error) {
			return testOperator, nil
		},
	}
	royalty := &MockRoyaltyReader{
		RoyaltyOfFunc: func(common.Address) (common.Address, uint16) {
			return testRoyaltyReceiver, 1000
		},
	}
	pay := &MockPaymentRail{}
	emitter := &recordingEmitter{}

	mkt, err := New(testOwner, testOperator, 250, testFeeReceiver,
		nfts, royalty, pay, emitter, zap.NewNop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return &marketFixture{mkt: mkt, nfts: nfts, royalty: royalty, pay: pay, emitter: emitter}
}

func (f *marketFixture) list(t *testing.T, price int64) uint64 {
	t.Helper()
	id, err := f.mkt.List(context.Background(), testSeller, testCollection,
		1, big.NewInt(price), common.Address{}, 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	return id
}

func TestNew_RejectsExcessiveFee(t *testing.T) {
	_, err := New(testOwner, testOperator, 10001, testFeeReceiver,
		&MockNFTRegistry{}, &MockRoyaltyReader{}, &MockPaymentRail{}, &recordingEmitter{}, zap.NewNop())
	if !errors.Is(err, ErrInvalidBps) {
		t.Fatalf("expected ErrInvalidBps, got %v", err)
	}
}

func TestList_Validations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.mkt.List(ctx, testSeller, testCollection, 1, big.NewInt(0), common.Address{}, 0); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := f.mkt.List(ctx, testSeller, testCollection, 1, nil, common.Address{}, 0); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("nil price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := f.mkt.List(ctx, testSeller, testCollection, 1, big.NewInt(100), common.Address{}, 10001); !errors.Is(err, ErrInvalidBps) {
		t.Errorf("override bps: expected ErrInvalidBps, got %v", err)
	}

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	if _, err := f.mkt.List(ctx, testSeller, other, 1, big.NewInt(100), common.Address{}, 0); !errors.Is(err, ErrWrongCollection) {
		t.Errorf("wrong collection: expected ErrWrongCollection, got %v", err)
	}

	if _, err := f.mkt.List(ctx, testBuyer, testCollection, 1, big.NewInt(100), common.Address{}, 0); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner: expected ErrUnauthorized, got %v", err)
	}

	f.nfts.GetApprovedFunc = func(int64) (common.Address, error) {
		return common.Address{}, nil
	}
	if _, err := f.mkt.List(ctx, testSeller, testCollection, 1, big.NewInt(100), common.Address{}, 0); !errors.Is(err, ErrMarketplaceNotApproved) {
		t.Errorf("no approval: expected ErrMarketplaceNotApproved, got %v", err)
	}
}

func TestList_IDsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)

	first := f.list(t, 100)
	second := f.list(t, 200)
	if second <= first {
		t.Fatalf("expected increasing ids, got %d then %d", first, second)
	}

	// A cancelled listing's id is never reused.
	if err := f.mkt.Cancel(context.Background(), testSeller, second); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	third := f.list(t, 300)
	if third <= second {
		t.Fatalf("expected id above %d after cancel, got %d", second, third)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.list(t, 100)

	if err := f.mkt.Cancel(ctx, testBuyer, id); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-seller cancel: expected ErrUnauthorized, got %v", err)
	}

	if err := f.mkt.Cancel(ctx, testSeller, id); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	listing, err := f.mkt.Listing(id)
	if err != nil {
		t.Fatalf("Listing() failed: %v", err)
	}
	if listing.State != StateCancelled {
		t.Errorf("expected Cancelled, got %s", listing.State)
	}
	if len(f.pay.Transfers) != 0 {
		t.Errorf("cancel moved funds: %v", f.pay.Transfers)
	}

	if err := f.mkt.Cancel(ctx, testSeller, id); !errors.Is(err, ErrListingNotActive) {
		t.Errorf("double cancel: expected ErrListingNotActive, got %v", err)
	}
	if err := f.mkt.Cancel(ctx, testSeller, 999); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("unknown id: expected ErrListingNotFound, got %v", err)
	}
}

func TestBuy_PaymentMustMatchExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.list(t, 1000)

	for _, payment := range []int64{999, 1001, 0} {
		_, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(payment))
		if !errors.Is(err, ErrIncorrectPayment) {
			t.Errorf("payment %d: expected ErrIncorrectPayment, got %v", payment, err)
		}
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, id, nil); !errors.Is(err, ErrIncorrectPayment) {
		t.Errorf("nil payment: expected ErrIncorrectPayment, got %v", err)
	}

	// Failed attempts leave the listing purchasable.
	listing, _ := f.mkt.Listing(id)
	if listing.State != StateActive {
		t.Fatalf("expected Active after rejected payments, got %s", listing.State)
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); err != nil {
		t.Fatalf("exact payment failed: %v", err)
	}
}

func TestBuy_TerminalStatesRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sold := f.list(t, 1000)
	if _, err := f.mkt.Buy(ctx, testBuyer, sold, big.NewInt(1000)); err != nil {
		t.Fatalf("Buy() failed: %v", err)
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, sold, big.NewInt(1000)); !errors.Is(err, ErrListingNotActive) {
		t.Errorf("buy sold listing: expected ErrListingNotActive, got %v", err)
	}

	cancelled := f.list(t, 1000)
	if err := f.mkt.Cancel(ctx, testSeller, cancelled); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, cancelled, big.NewInt(1000)); !errors.Is(err, ErrListingNotActive) {
		t.Errorf("buy cancelled listing: expected ErrListingNotActive, got %v", err)
	}

	if _, err := f.mkt.Buy(ctx, testBuyer, 999, big.NewInt(1000)); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("buy unknown listing: expected ErrListingNotFound, got %v", err)
	}
}

func TestBuy_StaleListingStaysActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.list(t, 1000)

	// Seller disposed of the token after listing.
	f.nfts.OwnerOfFunc = func(int64) (common.Address, error) {
		return testBuyer, nil
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); !errors.Is(err, ErrStaleListing) {
		t.Fatalf("expected ErrStaleListing, got %v", err)
	}
	listing, _ := f.mkt.Listing(id)
	if listing.State != StateActive {
		t.Errorf("expected Active after stale buy, got %s", listing.State)
	}
	if len(f.pay.Transfers) != 0 {
		t.Errorf("stale buy moved funds: %v", f.pay.Transfers)
	}

	// Approval revoked after listing.
	f.nfts.OwnerOfFunc = func(int64) (common.Address, error) { return testSeller, nil }
	f.nfts.GetApprovedFunc = func(int64) (common.Address, error) { return common.Address{}, nil }
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); !errors.Is(err, ErrStaleListing) {
		t.Fatalf("revoked approval: expected ErrStaleListing, got %v", err)
	}
}

func TestBuy_SplitsPaymentAndTransfersToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	price, _ := new(big.Int).SetString("5000000000000000000", 10)
	id, err := f.mkt.List(ctx, testSeller, testCollection, 7, price, common.Address{}, 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	var movedSerial int64
	var movedTo common.Address
	f.nfts.TransferNFTFunc = func(_ context.Context, caller common.Address, serial int64, to common.Address) error {
		if caller != testOperator {
			t.Errorf("expected transfer by operator %s, got %s", testOperator, caller)
		}
		// The listing must already be terminal when external effects run.
		listing, err := f.mkt.Listing(id)
		if err != nil {
			t.Errorf("Listing() inside transfer failed: %v", err)
		} else if listing.State != StateSold {
			t.Errorf("expected Sold before token transfer, got %s", listing.State)
		}
		movedSerial = serial
		movedTo = to
		return nil
	}

	split, err := f.mkt.Buy(ctx, testBuyer, id, price)
	if err != nil {
		t.Fatalf("Buy() failed: %v", err)
	}

	if movedSerial != 7 || movedTo != testBuyer {
		t.Errorf("expected serial 7 to %s, got serial %d to %s", testBuyer, movedSerial, movedTo)
	}

	if len(f.pay.Transfers) != 3 {
		t.Fatalf("expected 3 payments, got %d: %v", len(f.pay.Transfers), f.pay.Transfers)
	}
	wantFee, _ := new(big.Int).SetString("125000000000000000", 10)
	wantRoyalty, _ := new(big.Int).SetString("500000000000000000", 10)
	wantSeller, _ := new(big.Int).SetString("4375000000000000000", 10)

	checkTransfer(t, f.pay.Transfers[0], testBuyer, testFeeReceiver, wantFee)
	checkTransfer(t, f.pay.Transfers[1], testBuyer, testRoyaltyReceiver, wantRoyalty)
	checkTransfer(t, f.pay.Transfers[2], testBuyer, testSeller, wantSeller)

	// The returned split is the one that was disbursed.
	if split.FeeAmount.Cmp(wantFee) != 0 ||
		split.RoyaltyAmount.Cmp(wantRoyalty) != 0 ||
		split.SellerAmount.Cmp(wantSeller) != 0 {
		t.Errorf("returned split %+v does not match disbursements", split)
	}

	kind, payload := f.emitter.last()
	if kind != events.KindSold {
		t.Fatalf("expected Sold event, got %s", kind)
	}
	sold := payload.(events.Sold)
	if sold.ListingID != id || sold.Buyer != testBuyer {
		t.Errorf("unexpected Sold payload: %+v", sold)
	}
	if sold.SellerAmount.Cmp(wantSeller) != 0 {
		t.Errorf("Sold seller amount: expected %s, got %s", wantSeller, sold.SellerAmount)
	}
}

func checkTransfer(t *testing.T, got RecordedTransfer, from, to common.Address, amount *big.Int) {
	t.Helper()
	if got.From != from || got.To != to || got.Amount.Cmp(amount) != 0 {
		t.Errorf("expected %s -> %s amount %s, got %s -> %s amount %s",
			from, to, amount, got.From, got.To, got.Amount)
	}
}

func TestBuy_RoyaltyOverrideBeatsRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Registry says 10%, the listing overrides to 5%.
	id, err := f.mkt.List(ctx, testSeller, testCollection, 1, big.NewInt(10000), common.Address{}, 500)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(10000)); err != nil {
		t.Fatalf("Buy() failed: %v", err)
	}

	if len(f.pay.Transfers) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(f.pay.Transfers))
	}
	if f.pay.Transfers[1].Amount.Int64() != 500 {
		t.Errorf("expected overridden royalty 500, got %s", f.pay.Transfers[1].Amount)
	}
	if f.pay.Transfers[2].Amount.Int64() != 9250 {
		t.Errorf("expected seller amount 9250, got %s", f.pay.Transfers[2].Amount)
	}
}

func TestBuy_ZeroRoyaltySkipsRoyaltyPayment(t *testing.T) {
	f := newFixture(t)
	f.royalty.RoyaltyOfFunc = func(common.Address) (common.Address, uint16) {
		return common.Address{}, 0
	}
	ctx := context.Background()
	id := f.list(t, 1000)

	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); err != nil {
		t.Fatalf("Buy() failed: %v", err)
	}
	if len(f.pay.Transfers) != 2 {
		t.Fatalf("expected 2 payments with zero royalty, got %d", len(f.pay.Transfers))
	}
	checkTransfer(t, f.pay.Transfers[0], testBuyer, testFeeReceiver, big.NewInt(25))
	checkTransfer(t, f.pay.Transfers[1], testBuyer, testSeller, big.NewInt(975))
}

func TestBuy_NonNativeCurrencyRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	id, err := f.mkt.List(ctx, testSeller, testCollection, 1, big.NewInt(1000), token, 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

func TestBuy_DisbursementFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.list(t, 1000)

	railErr := errors.New("receiver rejected payment")
	f.pay.TransferFunc = func(from, to common.Address, amount *big.Int) error {
		if to == testRoyaltyReceiver {
			return railErr
		}
		return nil
	}

	// The error surfaces unchanged so the call boundary rolls the whole call
	// back, including the Sold transition committed before disbursement.
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); !errors.Is(err, railErr) {
		t.Fatalf("expected rail error, got %v", err)
	}
}

func TestBuy_SplitOverflowRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fee and override royalty together exceed 100%.
	id, err := f.mkt.List(ctx, testSeller, testCollection, 1, big.NewInt(1000), common.Address{}, 9800)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if _, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(1000)); !errors.Is(err, ErrSplitOverflow) {
		t.Fatalf("expected ErrSplitOverflow, got %v", err)
	}
	listing, _ := f.mkt.Listing(id)
	if listing.State != StateActive {
		t.Errorf("expected Active after overflow rejection, got %s", listing.State)
	}
}

func TestBuy_SplitReflectsSaleTimeFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.list(t, 10000)

	split, err := f.mkt.Buy(ctx, testBuyer, id, big.NewInt(10000))
	if err != nil {
		t.Fatalf("Buy() failed: %v", err)
	}

	// A fee change after settlement must not leak into what the sale
	// reported or disbursed.
	if err := f.mkt.SetPlatformFee(ctx, testOwner, 1000); err != nil {
		t.Fatalf("SetPlatformFee() failed: %v", err)
	}
	if split.FeeAmount.Int64() != 250 {
		t.Errorf("expected fee 250 at the 250 bps in force at sale time, got %s", split.FeeAmount)
	}
	checkTransfer(t, f.pay.Transfers[0], testBuyer, testFeeReceiver, big.NewInt(250))
}

func TestSetPlatformFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.mkt.SetPlatformFee(ctx, testBuyer, 100); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner: expected ErrUnauthorized, got %v", err)
	}
	if err := f.mkt.SetPlatformFee(ctx, testOwner, 10001); !errors.Is(err, ErrInvalidBps) {
		t.Errorf("out of range: expected ErrInvalidBps, got %v", err)
	}
	if err := f.mkt.SetPlatformFee(ctx, testOwner, 300); err != nil {
		t.Fatalf("SetPlatformFee() failed: %v", err)
	}
	if got := f.mkt.PlatformFeeBps(); got != 300 {
		t.Errorf("expected 300 bps, got %d", got)
	}
}

func TestSetFeeReceiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	next := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	if err := f.mkt.SetFeeReceiver(ctx, testBuyer, next); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner: expected ErrUnauthorized, got %v", err)
	}
	if err := f.mkt.SetFeeReceiver(ctx, testOwner, next); err != nil {
		t.Fatalf("SetFeeReceiver() failed: %v", err)
	}
	if got := f.mkt.FeeReceiver(); got != next {
		t.Errorf("expected %s, got %s", next, got)
	}
}
