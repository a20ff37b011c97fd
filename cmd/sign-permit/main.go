package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/crypto"
)

// Signs a token permit for submission alongside a create or fill call,
// so the holder never has to issue a separate approve.

func main() {
	var (
		keyHex   = flag.String("key", "", "signer private key hex (64 chars, no 0x); generates a fresh key if empty")
		token    = flag.String("token", "", "token address being approved")
		spender  = flag.String("spender", "0x0000000000000000000000000000000000005AFE", "spender address (the engine vault)")
		value    = flag.String("value", "", "allowance amount in base units (decimal)")
		nonce    = flag.Uint64("nonce", 0, "owner's current permit nonce")
		deadline = flag.Int64("deadline", 0, "permit expiry as Unix seconds, 0 = no expiry")
		chainID  = flag.Int64("chain-id", 1337, "chain id of the target deployment")
	)
	flag.Parse()

	if !common.IsHexAddress(*token) {
		fatal("need -token (hex address)")
	}
	if !common.IsHexAddress(*spender) {
		fatal("need -spender (hex address)")
	}
	amount, ok := new(big.Int).SetString(*value, 10)
	if !ok || amount.Sign() <= 0 {
		fatal("need -value (positive decimal amount)")
	}

	var (
		signer *crypto.Signer
		err    error
	)
	if *keyHex == "" {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
		if err != nil {
			fatal("generate key: %v", err)
		}
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
		if err != nil {
			fatal("parse key: %v", err)
		}
	}

	// EIP-55 checksummed form, derived from the raw public key
	checksummed := crypto.AddressFromUncompressedPub(signer.PublicKeyBytes())
	fmt.Printf("Owner: %s\n\n", checksummed)

	permit := &crypto.PermitEIP712{
		Token:    common.HexToAddress(*token),
		Owner:    signer.Address(),
		Spender:  common.HexToAddress(*spender),
		Value:    amount,
		Nonce:    new(big.Int).SetUint64(*nonce),
		Deadline: big.NewInt(*deadline),
	}

	domain := crypto.DefaultDomain(big.NewInt(*chainID), permit.Spender)
	permitSigner := crypto.NewPermitSigner(domain)

	signature, err := permitSigner.SignPermit(signer, permit)
	if err != nil {
		fatal("sign: %v", err)
	}

	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Sanity-check the signature before handing it out
	valid, err := permitSigner.VerifyPermitSignature(permit, signature)
	if err != nil {
		fatal("verify: %v", err)
	}
	if !valid {
		fatal("signature does not recover to owner")
	}
	fmt.Println("Signature verified.")

	payload := map[string]interface{}{
		"deadline":  *deadline,
		"signature": fmt.Sprintf("0x%x", signature),
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fatal("marshal: %v", err)
	}

	fmt.Println("\nPermit payload for the API (\"permit\" field of a create or fill request):")
	fmt.Println(string(body))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
