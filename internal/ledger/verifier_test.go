package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	potWallet    = "9vQfZ6eNCYVHypT6dDkZwqTYYvJHuBEMHLvoEsqG23n5"
	payerWallet  = "7fUAJdStEuGbc3sM84cKRL6yYaaSstyLSU4ve5oovLS7"
	strangerDest = "4Nd1mYvM8LqS5tVcZb9dP2xvR7jKwQh3sF6gT8uW1eXy"
)

type fakeFetcher struct {
	tx  *TransactionDetail
	err error
}

func (f *fakeFetcher) GetTransaction(context.Context, string) (*TransactionDetail, error) {
	return f.tx, f.err
}

// transferData builds the base58 instruction payload of a system transfer.
func transferData(t *testing.T, instrType uint32, lamports uint64) string {
	t.Helper()
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], instrType)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return base58.Encode(data)
}

func transferTx(t *testing.T, dest string, lamports uint64, blockTime int64) *TransactionDetail {
	t.Helper()
	return &TransactionDetail{
		BlockTime: &blockTime,
		Meta:      &txMeta{},
		Transaction: txEnvelope{Message: txMessage{
			AccountKeys: []string{payerWallet, dest, SystemProgramID},
			Instructions: []Instruction{{
				ProgramIDIndex: 2,
				Accounts:       []int{0, 1},
				Data:           transferData(t, transferInstructionType, lamports),
			}},
		}},
	}
}

func newTestVerifier(tx *TransactionDetail, now time.Time) *Verifier {
	v := NewVerifier(&fakeFetcher{tx: tx}, potWallet, 10*time.Minute, 1)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyAcceptsExactPayment(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(transferTx(t, potWallet, 100_000_000, now.Unix()), now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, payerWallet, res.ActualPayer)
	assert.Equal(t, uint64(100_000_000), res.Lamports)
}

func TestVerifyToleratesOnePercentShortfall(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(transferTx(t, potWallet, 99_000_000, now.Unix()), now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestVerifyRejectsLargerShortfall(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(transferTx(t, potWallet, 98_000_000, now.Unix()), now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "payment amount too low", res.Reason)
}

func TestVerifyRejectsWrongRecipient(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(transferTx(t, strangerDest, 100_000_000, now.Unix()), now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "no matching transfer to pot wallet", res.Reason)
}

func TestVerifyRejectsMissingTransaction(t *testing.T) {
	v := NewVerifier(&fakeFetcher{}, potWallet, 10*time.Minute, 1)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "transaction not found", res.Reason)
}

func TestVerifyRejectsOnChainFailure(t *testing.T) {
	now := time.Now()
	tx := transferTx(t, potWallet, 100_000_000, now.Unix())
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
	v := newTestVerifier(tx, now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "transaction failed on-chain", res.Reason)
}

func TestVerifyRejectsStaleTransaction(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(transferTx(t, potWallet, 100_000_000, now.Add(-11*time.Minute).Unix()), now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "transaction too old", res.Reason)
}

func TestVerifySkipsNonTransferInstructions(t *testing.T) {
	now := time.Now()
	tx := transferTx(t, potWallet, 100_000_000, now.Unix())
	// Prepend an instruction with a different discriminator; the real
	// transfer behind it must still be found.
	tx.Transaction.Message.Instructions = append([]Instruction{{
		ProgramIDIndex: 2,
		Accounts:       []int{0, 1},
		Data:           transferData(t, 3, 100_000_000),
	}}, tx.Transaction.Message.Instructions...)
	v := newTestVerifier(tx, now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestVerifyScansPastUndersizedTransfer(t *testing.T) {
	now := time.Now()
	tx := transferTx(t, potWallet, 100_000_000, now.Unix())
	// A small tip to the pot ahead of the real payment must not abort the
	// scan; the sufficient transfer behind it validates the payment.
	tx.Transaction.Message.Instructions = append([]Instruction{{
		ProgramIDIndex: 2,
		Accounts:       []int{0, 1},
		Data:           transferData(t, transferInstructionType, 1_000_000),
	}}, tx.Transaction.Message.Instructions...)
	v := newTestVerifier(tx, now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, payerWallet, res.ActualPayer)
	assert.Equal(t, uint64(100_000_000), res.Lamports)
}

func TestVerifyReportsLowAmountWhenOnlyUndersizedTransfers(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(transferTx(t, potWallet, 1_000_000, now.Unix()), now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "payment amount too low", res.Reason)
}

func TestVerifyPropagatesRPCError(t *testing.T) {
	v := NewVerifier(&fakeFetcher{err: errors.New("rpc down")}, potWallet, 10*time.Minute, 1)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	assert.Error(t, err)
	assert.False(t, res.Valid)
}

func TestVerifyIgnoresMalformedInstructionData(t *testing.T) {
	now := time.Now()
	tx := transferTx(t, potWallet, 100_000_000, now.Unix())
	tx.Transaction.Message.Instructions[0].Data = "not-base58-!!!"
	v := newTestVerifier(tx, now)

	res, err := v.Verify(context.Background(), "sig", 100_000_000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}
