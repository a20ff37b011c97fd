package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/deployments
type EIP712Domain struct {
	Name              string         // Protocol name (e.g., "StarSwap")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local)
	VerifyingContract common.Address // Settlement engine address
}

// PermitEIP712 is a one-step spending approval for EIP-712 signing.
// A valid signature lets the settlement engine consume `Value` of `Token`
// from `Owner` without a prior approve call.
type PermitEIP712 struct {
	Token    common.Address // Token being approved
	Owner    common.Address // Token holder granting the allowance
	Spender  common.Address // Party allowed to spend (the engine vault)
	Value    *big.Int       // Allowance amount in base units
	Nonce    *big.Int       // Owner's permit nonce for replay protection
	Deadline *big.Int       // Expiration timestamp (Unix seconds), 0 = no expiry
}

// PermitSigner handles EIP-712 typed data hashing for permits
type PermitSigner struct {
	domain EIP712Domain
}

// NewPermitSigner creates a permit signer with the given domain
func NewPermitSigner(domain EIP712Domain) *PermitSigner {
	return &PermitSigner{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for StarSwap
func DefaultDomain(chainID *big.Int, engine common.Address) EIP712Domain {
	return EIP712Domain{
		Name:              "StarSwap",
		Version:           "1",
		ChainID:           chainID,
		VerifyingContract: engine,
	}
}

// HashPermit hashes a permit according to EIP-712 spec
// Returns the digest that should be signed
func (p *PermitSigner) HashPermit(permit *PermitEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Permit": []apitypes.Type{
				{Name: "token", Type: "address"},
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              p.domain.Name,
			Version:           p.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(p.domain.ChainID),
			VerifyingContract: p.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"token":    permit.Token.Hex(),
			"owner":    permit.Owner.Hex(),
			"spender":  permit.Spender.Hex(),
			"value":    permit.Value.String(),
			"nonce":    permit.Nonce.String(),
			"deadline": permit.Deadline.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := crypto.Keccak256Hash(rawData)

	return digest.Bytes(), nil
}

// SignPermit signs a permit and returns the signature
func (p *PermitSigner) SignPermit(signer *Signer, permit *PermitEIP712) ([]byte, error) {
	hash, err := p.HashPermit(permit)
	if err != nil {
		return nil, fmt.Errorf("failed to hash permit: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign permit: %w", err)
	}

	return signature, nil
}

// VerifyPermitSignature verifies that a permit signature is valid
// Returns true if signature matches the permit and claimed owner
func (p *PermitSigner) VerifyPermitSignature(permit *PermitEIP712, signature []byte) (bool, error) {
	hash, err := p.HashPermit(permit)
	if err != nil {
		return false, fmt.Errorf("failed to hash permit: %w", err)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recoveredAddr == permit.Owner, nil
}
