// Package solrpc wraps a set of Solana JSON-RPC endpoints behind one
// round-robin client so callers spread read traffic across providers and
// no single rate limit starves the pipeline.
package solrpc

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Offsets into a durable nonce account's raw data. Layout: version u32,
// state u32, authority 32 bytes, stored blockhash 32 bytes, fee u64.
const (
	nonceHashOffset = 40
	nonceHashEnd    = 72
)

// NonceAccountSize is the byte length of a durable nonce account, used to
// size its rent-exemption deposit.
const NonceAccountSize = 80

// Offsets into an SPL token account's raw data.
const (
	tokenAccountMintOffset   = 0
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = 72
)

// TokenAccountInfo is one token account owned by the wallet, read straight
// from the raw account layout.
type TokenAccountInfo struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
}

// TokenAmount reads the raw token quantity out of an SPL token account's
// data. ok is false when the data is too short to carry one.
func TokenAmount(data []byte) (amount uint64, ok bool) {
	if len(data) < tokenAccountMinLen {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]), true
}

// Config selects the endpoints and the read behavior shared by every call.
type Config struct {
	Endpoints      []string
	Commitment     rpc.CommitmentType // defaults to processed
	RequestTimeout time.Duration      // zero means no per-call deadline
}

// Pool rotates requests across one or more rpc.Clients.
type Pool struct {
	clients    []*rpc.Client
	commitment rpc.CommitmentType
	timeout    time.Duration
	next       atomic.Uint64
}

// NewPool builds a pool from the given config. At least one endpoint is
// required.
func NewPool(cfg Config) (*Pool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("solrpc: no endpoints configured")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentProcessed
	}
	clients := make([]*rpc.Client, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		clients = append(clients, rpc.New(ep))
	}
	return &Pool{clients: clients, commitment: cfg.Commitment, timeout: cfg.RequestTimeout}, nil
}

// Client returns the next client in rotation.
func (p *Pool) Client() *rpc.Client {
	n := p.next.Add(1)
	return p.clients[n%uint64(len(p.clients))]
}

func (p *Pool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// LatestBlockhash fetches the current recent blockhash.
func (p *Pool) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := p.Client().GetLatestBlockhash(ctx, p.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("solrpc: latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// NonceHash reads the stored blockhash out of a durable nonce account.
func (p *Pool) NonceHash(ctx context.Context, account solana.PublicKey) (solana.Hash, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	res, err := p.Client().GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: p.commitment,
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("solrpc: nonce account %s: %w", account, err)
	}
	if res.Value == nil {
		return solana.Hash{}, fmt.Errorf("solrpc: nonce account %s not found", account)
	}
	data := res.Value.Data.GetBinary()
	if len(data) < nonceHashEnd {
		return solana.Hash{}, fmt.Errorf("solrpc: nonce account %s: data too short (%d bytes)", account, len(data))
	}
	return solana.HashFromBytes(data[nonceHashOffset:nonceHashEnd]), nil
}

// Send submits a signed transaction. Preflight is skipped; the race to
// inclusion matters more than a simulation round trip.
func (p *Pool) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	sig, err := p.Client().SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: p.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("solrpc: send transaction: %w", err)
	}
	return sig, nil
}

// Balance returns the wallet's lamport balance.
func (p *Pool) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := p.Client().GetBalance(ctx, owner, p.commitment)
	if err != nil {
		return 0, fmt.Errorf("solrpc: balance %s: %w", owner, err)
	}
	return out.Value, nil
}

// TokenBalance returns a token account's raw amount and decimals.
func (p *Pool) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, uint8, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := p.Client().GetTokenAccountBalance(ctx, account, p.commitment)
	if err != nil {
		return 0, 0, fmt.Errorf("solrpc: token balance %s: %w", account, err)
	}
	if out.Value == nil {
		return 0, 0, fmt.Errorf("solrpc: token balance %s: empty result", account)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("solrpc: token balance %s: parse amount %q: %w", account, out.Value.Amount, err)
	}
	return amount, out.Value.Decimals, nil
}

// TokenAccounts lists the owner's accounts under the given token program,
// decoding mint and amount from the raw layout.
func (p *Pool) TokenAccounts(ctx context.Context, owner, tokenProgram solana.PublicKey) ([]TokenAccountInfo, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	res, err := p.Client().GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &tokenProgram},
		&rpc.GetTokenAccountsOpts{
			Commitment: p.commitment,
			Encoding:   solana.EncodingBase64,
		})
	if err != nil {
		return nil, fmt.Errorf("solrpc: token accounts for %s: %w", owner, err)
	}

	accounts := make([]TokenAccountInfo, 0, len(res.Value))
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		data := acc.Account.Data.GetBinary()
		if len(data) < tokenAccountMinLen {
			continue
		}
		accounts = append(accounts, TokenAccountInfo{
			Address: acc.Pubkey,
			Mint:    solana.PublicKeyFromBytes(data[tokenAccountMintOffset : tokenAccountMintOffset+32]),
			Amount:  binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]),
		})
	}
	return accounts, nil
}

// Accounts batch-fetches raw account data for the given keys in one call.
// Missing accounts come back as nil entries in the same order as keys.
func (p *Pool) Accounts(ctx context.Context, keys ...solana.PublicKey) ([]*rpc.Account, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := p.Client().GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
		Commitment: p.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("solrpc: multiple accounts: %w", err)
	}
	if out.Value == nil {
		return make([]*rpc.Account, len(keys)), nil
	}
	return out.Value, nil
}

// RentExempt returns the minimum lamport balance that keeps an account of
// the given data length rent-exempt.
func (p *Pool) RentExempt(ctx context.Context, dataLen uint64) (uint64, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	lamports, err := p.Client().GetMinimumBalanceForRentExemption(ctx, dataLen, p.commitment)
	if err != nil {
		return 0, fmt.Errorf("solrpc: rent exemption for %d bytes: %w", dataLen, err)
	}
	return lamports, nil
}
