// Package wallet loads the signing keypair and adapts it to the shapes the
// transaction layer needs.
package wallet

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// minEncodedKeyLen is the shortest base58 encoding a 64-byte keypair can
// have. Anything shorter is a truncated paste or a lone secret seed.
const minEncodedKeyLen = 85

// Wallet holds the bot's keypair.
type Wallet struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// Load parses a base58-encoded 64-byte keypair.
func Load(encoded string) (*Wallet, error) {
	encoded = strings.TrimSpace(encoded)
	if len(encoded) < minEncodedKeyLen {
		return nil, fmt.Errorf("wallet: private key too short (%d chars, want at least %d)", len(encoded), minEncodedKeyLen)
	}
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse private key: %w", err)
	}
	return &Wallet{key: key, pub: key.PublicKey()}, nil
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.pub
}

// Signer returns the callback shape solana.Transaction.Sign expects.
func (w *Wallet) Signer() func(key solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.key
		}
		return nil
	}
}
