package ledger

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/mr-tron/base58"
)

// transferInstructionType is the system program's discriminator for a plain
// lamport transfer, serialized as a little-endian u32 at the head of the
// instruction data.
const transferInstructionType = 2

// TransactionFetcher is the RPC surface the verifier needs.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error)
}

// VerifyResult is the outcome of checking a payment signature against the
// ledger. ActualPayer is the source account of the matching transfer, which
// is the address the rest of the request is bound to; the caller-claimed
// wallet is never trusted.
type VerifyResult struct {
	Valid       bool
	ActualPayer string
	Lamports    uint64
	Reason      string
}

// Verifier checks that a claimed payment signature corresponds to a real,
// recent, successful transfer of the message cost into the pot wallet.
type Verifier struct {
	fetcher      TransactionFetcher
	potWallet    string
	maxTxAge     time.Duration
	tolerancePct uint64
	now          func() time.Time
}

// NewVerifier creates a verifier for payments into potWallet. tolerancePct
// is how far below the expected amount a payment may fall and still count,
// in whole percent.
func NewVerifier(fetcher TransactionFetcher, potWallet string, maxTxAge time.Duration, tolerancePct uint64) *Verifier {
	if maxTxAge <= 0 {
		maxTxAge = 10 * time.Minute
	}
	return &Verifier{
		fetcher:      fetcher,
		potWallet:    potWallet,
		maxTxAge:     maxTxAge,
		tolerancePct: tolerancePct,
		now:          time.Now,
	}
}

// Verify fetches the transaction and checks it end to end: it must exist,
// have executed without error, be recent, and contain a system-program
// transfer of at least the tolerance-adjusted expected lamports into the
// pot wallet. An RPC outage returns a non-nil error and no judgement.
func (v *Verifier) Verify(ctx context.Context, signature string, expectedLamports uint64) (VerifyResult, error) {
	tx, err := v.fetcher.GetTransaction(ctx, signature)
	if err != nil {
		return VerifyResult{}, err
	}
	if tx == nil {
		return VerifyResult{Reason: "transaction not found"}, nil
	}
	if tx.Failed() {
		return VerifyResult{Reason: "transaction failed on-chain"}, nil
	}
	if tx.BlockTime != nil {
		age := v.now().Sub(time.Unix(*tx.BlockTime, 0))
		if age > v.maxTxAge {
			slog.Warn("[Ledger] Rejecting stale payment", "signature", signature, "age", age)
			return VerifyResult{Reason: "transaction too old"}, nil
		}
	}

	// Any one sufficient transfer among the sub-instructions validates the
	// payment; an undersized transfer to the pot does not end the scan.
	msg := tx.Transaction.Message
	reason := "no matching transfer to pot wallet"
	for _, instr := range msg.Instructions {
		payer, lamports, ok := v.matchTransfer(msg.AccountKeys, instr)
		if !ok {
			continue
		}
		// Integer form of "at least (100 - tolerance)% of the expected
		// amount"; no floating point near money.
		if lamports*100 < expectedLamports*(100-v.tolerancePct) {
			reason = "payment amount too low"
			continue
		}
		return VerifyResult{Valid: true, ActualPayer: payer, Lamports: lamports}, nil
	}

	return VerifyResult{Reason: reason}, nil
}

// matchTransfer decodes one instruction and returns the source account and
// lamports when it is a system-program transfer into the pot wallet.
// Malformed instructions are skipped, not rejected: unrelated instructions
// may share the transaction.
func (v *Verifier) matchTransfer(accountKeys []string, instr Instruction) (string, uint64, bool) {
	if instr.ProgramIDIndex < 0 || instr.ProgramIDIndex >= len(accountKeys) {
		return "", 0, false
	}
	if accountKeys[instr.ProgramIDIndex] != SystemProgramID {
		return "", 0, false
	}
	if len(instr.Accounts) < 2 {
		return "", 0, false
	}
	srcIdx, dstIdx := instr.Accounts[0], instr.Accounts[1]
	if srcIdx < 0 || srcIdx >= len(accountKeys) || dstIdx < 0 || dstIdx >= len(accountKeys) {
		return "", 0, false
	}
	if accountKeys[dstIdx] != v.potWallet {
		return "", 0, false
	}

	data, err := base58.Decode(instr.Data)
	if err != nil || len(data) < 12 {
		return "", 0, false
	}
	if binary.LittleEndian.Uint32(data[0:4]) != transferInstructionType {
		return "", 0, false
	}
	lamports := binary.LittleEndian.Uint64(data[4:12])
	return accountKeys[srcIdx], lamports, true
}
