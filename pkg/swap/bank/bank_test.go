package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	swapcrypto "github.com/StarDEX-Protocol/StarSwap-audit/pkg/crypto"
)

var (
	usdc  = common.HexToAddress("0xC000000000000000000000000000000000000000")
	vault = common.HexToAddress("0x0000000000000000000000000000000000005AFE")
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func testDomain() swapcrypto.EIP712Domain {
	return swapcrypto.DefaultDomain(big.NewInt(1337), vault)
}

func TestMintAndTransfer(t *testing.T) {
	b := NewBank(testDomain(), nil)

	if err := b.Mint(usdc, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := b.Transfer(usdc, alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := b.BalanceOf(usdc, alice); got.Cmp(big.NewInt(700)) != 0 {
		t.Errorf("alice balance = %s, want 700", got)
	}
	if got := b.BalanceOf(usdc, bob); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("bob balance = %s, want 300", got)
	}

	if err := b.Transfer(usdc, alice, bob, big.NewInt(701)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if err := b.Transfer(usdc, alice, bob, big.NewInt(0)); !errors.Is(err, ErrNonPositiveAmount) {
		t.Errorf("zero transfer: got %v, want ErrNonPositiveAmount", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	b := NewBank(testDomain(), nil)
	b.Mint(usdc, alice, big.NewInt(1000))

	if err := b.TransferFrom(usdc, alice, vault, bob, big.NewInt(100)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("no allowance: got %v, want ErrInsufficientAllowance", err)
	}

	b.Approve(usdc, alice, vault, big.NewInt(250))
	if err := b.TransferFrom(usdc, alice, vault, bob, big.NewInt(100)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := b.Allowance(usdc, alice, vault); got.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("allowance = %s, want 150", got)
	}
	if got := b.BalanceOf(usdc, bob); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("bob balance = %s, want 100", got)
	}

	if err := b.TransferFrom(usdc, alice, vault, bob, big.NewInt(151)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("over-allowance: got %v, want ErrInsufficientAllowance", err)
	}
}

func TestPermitRoundTrip(t *testing.T) {
	now := int64(1_000)
	b := NewBank(testDomain(), func() int64 { return now })

	signer, err := swapcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	owner := signer.Address()
	b.Mint(usdc, owner, big.NewInt(1000))

	permit := &swapcrypto.PermitEIP712{
		Token:    usdc,
		Owner:    owner,
		Spender:  vault,
		Value:    big.NewInt(400),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(2_000),
	}
	ps := swapcrypto.NewPermitSigner(testDomain())
	sig, err := ps.SignPermit(signer, permit)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := b.Permit(usdc, owner, vault, big.NewInt(400), 2_000, sig); err != nil {
		t.Fatalf("permit: %v", err)
	}
	if got := b.Allowance(usdc, owner, vault); got.Cmp(big.NewInt(400)) != 0 {
		t.Errorf("allowance = %s, want 400", got)
	}
	if got := b.Nonce(owner); got != 1 {
		t.Errorf("nonce = %d, want 1", got)
	}

	// Replaying the same signature must fail: the nonce has moved on.
	if err := b.Permit(usdc, owner, vault, big.NewInt(400), 2_000, sig); !errors.Is(err, ErrBadPermitSignature) {
		t.Errorf("replay: got %v, want ErrBadPermitSignature", err)
	}
}

func TestPermitExpiry(t *testing.T) {
	now := int64(5_000)
	b := NewBank(testDomain(), func() int64 { return now })

	signer, _ := swapcrypto.GenerateKey()
	if err := b.Permit(usdc, signer.Address(), vault, big.NewInt(1), 4_999, make([]byte, 65)); !errors.Is(err, ErrPermitExpired) {
		t.Errorf("expired permit: got %v, want ErrPermitExpired", err)
	}
}

func TestPermitRejectsTamperedValue(t *testing.T) {
	b := NewBank(testDomain(), nil)

	signer, _ := swapcrypto.GenerateKey()
	owner := signer.Address()

	permit := &swapcrypto.PermitEIP712{
		Token:    usdc,
		Owner:    owner,
		Spender:  vault,
		Value:    big.NewInt(400),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(0),
	}
	ps := swapcrypto.NewPermitSigner(testDomain())
	sig, err := ps.SignPermit(signer, permit)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Signed for 400, presented for 500.
	if err := b.Permit(usdc, owner, vault, big.NewInt(500), 0, sig); !errors.Is(err, ErrBadPermitSignature) {
		t.Errorf("tampered value: got %v, want ErrBadPermitSignature", err)
	}
}
