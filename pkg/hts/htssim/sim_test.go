package htssim

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usikolabs/usiko-middleware/pkg/hts"
)

var (
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000011")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000022")
)

func createCollection(t *testing.T, s *Simulator) common.Address {
	t.Helper()
	handle, code := s.CreateCollection(context.Background(), hts.CreateCollectionRequest{
		Name:     "Test",
		Symbol:   "TST",
		Treasury: treasury,
	}, DefaultCreationFee)
	if !code.OK() {
		t.Fatalf("CreateCollection() returned %s", code)
	}
	return handle
}

func TestCreateCollection_Funding(t *testing.T) {
	s := New()
	ctx := context.Background()
	req := hts.CreateCollectionRequest{Name: "Test", Symbol: "TST", Treasury: treasury}

	if _, code := s.CreateCollection(ctx, req, nil); code != hts.CodeInsufficientTxFee {
		t.Errorf("nil funding: expected INSUFFICIENT_TX_FEE, got %s", code)
	}
	underfunded := new(big.Int).Sub(DefaultCreationFee, big.NewInt(1))
	if _, code := s.CreateCollection(ctx, req, underfunded); code != hts.CodeInsufficientTxFee {
		t.Errorf("underfunded: expected INSUFFICIENT_TX_FEE, got %s", code)
	}

	handle, code := s.CreateCollection(ctx, req, DefaultCreationFee)
	if !code.OK() {
		t.Fatalf("expected SUCCESS, got %s", code)
	}
	if handle == (common.Address{}) {
		t.Error("expected non-zero collection handle")
	}

	// Distinct collections get distinct handles, even with the same symbol.
	other, code := s.CreateCollection(ctx, req, DefaultCreationFee)
	if !code.OK() {
		t.Fatalf("second CreateCollection() returned %s", code)
	}
	if other == handle {
		t.Error("collection handles must be unique")
	}
}

func TestMint_RequiresAssociation(t *testing.T) {
	s := New()
	ctx := context.Background()
	handle := createCollection(t, s)

	if _, code := s.Mint(ctx, handle, alice, []byte("m")); code != hts.CodeTokenNotAssociatedToAccount {
		t.Errorf("expected TOKEN_NOT_ASSOCIATED_TO_ACCOUNT, got %s", code)
	}

	s.Associate(handle, alice)
	res, code := s.Mint(ctx, handle, alice, []byte("m"))
	if !code.OK() {
		t.Fatalf("Mint() returned %s", code)
	}
	if res.Serial != 1 || res.NewTotalSupply != 1 {
		t.Errorf("unexpected mint result: %+v", res)
	}

	// The treasury is associated implicitly at creation.
	if _, code := s.Mint(ctx, handle, treasury, []byte("t")); !code.OK() {
		t.Errorf("mint to treasury returned %s", code)
	}
}

func TestMint_UnknownCollection(t *testing.T) {
	s := New()
	bogus := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	if _, code := s.Mint(context.Background(), bogus, alice, nil); code != hts.CodeInvalidTokenID {
		t.Errorf("expected INVALID_TOKEN_ID, got %s", code)
	}
}

func TestTransfer(t *testing.T) {
	s := New()
	ctx := context.Background()
	handle := createCollection(t, s)
	s.Associate(handle, alice)

	res, code := s.Mint(ctx, handle, alice, nil)
	if !code.OK() {
		t.Fatalf("Mint() returned %s", code)
	}
	serial := res.Serial

	// Recipient must be opted in.
	if code := s.Transfer(ctx, handle, alice, bob, serial); code != hts.CodeTokenNotAssociatedToAccount {
		t.Errorf("expected TOKEN_NOT_ASSOCIATED_TO_ACCOUNT, got %s", code)
	}
	s.Associate(handle, bob)

	// Sender must hold the serial.
	if code := s.Transfer(ctx, handle, bob, alice, serial); code != hts.CodeSenderDoesNotOwnNFTSerial {
		t.Errorf("expected SENDER_DOES_NOT_OWN_NFT_SERIAL, got %s", code)
	}
	if code := s.Transfer(ctx, handle, alice, bob, 99); code != hts.CodeInvalidNFTID {
		t.Errorf("expected INVALID_NFT_ID, got %s", code)
	}

	if code := s.Transfer(ctx, handle, alice, bob, serial); !code.OK() {
		t.Fatalf("Transfer() returned %s", code)
	}
	if got := s.OwnerOf(handle, serial); got != bob {
		t.Errorf("expected owner %s, got %s", bob, got)
	}
}

func TestBurn_TreasuryCustodyAndSerialRetirement(t *testing.T) {
	s := New()
	ctx := context.Background()
	handle := createCollection(t, s)
	s.Associate(handle, alice)

	res, _ := s.Mint(ctx, handle, alice, nil)
	serial := res.Serial

	// Burn is refused while the serial is held outside the treasury.
	if _, code := s.Burn(ctx, handle, serial); code != hts.CodeTreasuryMustOwnBurnedNFT {
		t.Errorf("expected TREASURY_MUST_OWN_BURNED_NFT, got %s", code)
	}

	if code := s.Transfer(ctx, handle, alice, treasury, serial); !code.OK() {
		t.Fatalf("staging transfer returned %s", code)
	}
	burned, code := s.Burn(ctx, handle, serial)
	if !code.OK() {
		t.Fatalf("Burn() returned %s", code)
	}
	if burned.NewTotalSupply != 0 {
		t.Errorf("expected supply 0, got %d", burned.NewTotalSupply)
	}

	if _, code := s.Burn(ctx, handle, serial); code != hts.CodeInvalidNFTID {
		t.Errorf("double burn: expected INVALID_NFT_ID, got %s", code)
	}

	// The retired serial is never handed out again.
	next, _ := s.Mint(ctx, handle, alice, nil)
	if next.Serial != serial+1 {
		t.Errorf("expected serial %d, got %d", serial+1, next.Serial)
	}
}

func TestDissociate(t *testing.T) {
	s := New()
	ctx := context.Background()
	handle := createCollection(t, s)
	s.Associate(handle, alice)
	s.Dissociate(handle, alice)

	if _, code := s.Mint(ctx, handle, alice, nil); code != hts.CodeTokenNotAssociatedToAccount {
		t.Errorf("expected TOKEN_NOT_ASSOCIATED_TO_ACCOUNT after dissociate, got %s", code)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := New()
	ctx := context.Background()
	handle := createCollection(t, s)
	s.Associate(handle, alice)
	res, _ := s.Mint(ctx, handle, alice, []byte("m"))

	snap := s.Snapshot()

	s.Associate(handle, bob)
	s.Transfer(ctx, handle, alice, bob, res.Serial)
	s.Mint(ctx, handle, bob, nil)

	s.Restore(snap)

	if got := s.OwnerOf(handle, res.Serial); got != alice {
		t.Errorf("expected owner %s after restore, got %s", alice, got)
	}
	if _, code := s.Mint(ctx, handle, bob, nil); code != hts.CodeTokenNotAssociatedToAccount {
		t.Errorf("bob's association should be rolled back, got %s", code)
	}

	// Serial numbering resumes from the restored position.
	next, _ := s.Mint(ctx, handle, alice, nil)
	if next.Serial != res.Serial+1 {
		t.Errorf("expected serial %d, got %d", res.Serial+1, next.Serial)
	}
}
