package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	balance   uint64
	blockhash string
	sentTx    string
}

func (f *fakeSubmitter) GetBalance(context.Context, string) (uint64, error) {
	return f.balance, nil
}

func (f *fakeSubmitter) GetLatestBlockhash(context.Context) (string, error) {
	return f.blockhash, nil
}

func (f *fakeSubmitter) SendTransaction(_ context.Context, tx string) (string, error) {
	f.sentTx = tx
	return "payout-signature", nil
}

func genKey(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv, base58.Encode(pub)
}

func newTestPayout(t *testing.T, sub *fakeSubmitter) (*Payout, string) {
	t.Helper()
	treasuryKey, _ := genKey(t)
	_, devAddr := genKey(t)
	p, err := NewPayout(sub, base58.Encode(treasuryKey), devAddr, 0.8, 0.2, 2_000_000)
	require.NoError(t, err)
	return p, devAddr
}

func TestNewPayoutRejectsBadKey(t *testing.T) {
	_, err := NewPayout(&fakeSubmitter{}, "short", "dev", 0.8, 0.2, 0)
	assert.Error(t, err)
}

func TestTreasuryAddressDerivedFromKey(t *testing.T) {
	treasuryKey, _ := genKey(t)
	_, devAddr := genKey(t)
	p, err := NewPayout(&fakeSubmitter{}, base58.Encode(treasuryKey), devAddr, 0.8, 0.2, 0)
	require.NoError(t, err)

	expected := base58.Encode(treasuryKey.Public().(ed25519.PublicKey))
	assert.Equal(t, expected, p.TreasuryAddress())
}

func TestPotBalanceSubtractsRentReserve(t *testing.T) {
	sub := &fakeSubmitter{balance: 10_000_000}
	p, _ := newTestPayout(t, sub)

	pot, err := p.PotBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(8_000_000), pot)
}

func TestPotBalanceNeverNegative(t *testing.T) {
	sub := &fakeSubmitter{balance: 1_000_000}
	p, _ := newTestPayout(t, sub)

	pot, err := p.PotBalance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pot)
}

func TestSendPrizeFailsOnEmptyPot(t *testing.T) {
	sub := &fakeSubmitter{balance: 2_000_000}
	p, _ := newTestPayout(t, sub)

	_, err := p.SendPrize(context.Background(), potWallet)
	assert.Error(t, err)
}

func TestSendPrizeBuildsSignedTransaction(t *testing.T) {
	blockhash := make([]byte, 32)
	for i := range blockhash {
		blockhash[i] = byte(i)
	}
	sub := &fakeSubmitter{
		balance:   102_000_000, // 100M spendable after the 2M reserve
		blockhash: base58.Encode(blockhash),
	}
	p, _ := newTestPayout(t, sub)
	_, winnerAddr := genKey(t)

	sig, err := p.SendPrize(context.Background(), winnerAddr)
	require.NoError(t, err)
	assert.Equal(t, "payout-signature", sig)

	raw, err := base64.StdEncoding.DecodeString(sub.sentTx)
	require.NoError(t, err)

	// One signature, then the message it covers.
	require.Greater(t, len(raw), 1+ed25519.SignatureSize)
	assert.Equal(t, byte(1), raw[0])
	txSig := raw[1 : 1+ed25519.SignatureSize]
	msg := raw[1+ed25519.SignatureSize:]

	treasuryPub, err := base58.Decode(p.TreasuryAddress())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(treasuryPub), msg, txSig),
		"transaction must be signed by the treasury key")

	// Header and account table: treasury, winner, dev, system program.
	assert.Equal(t, []byte{1, 0, 1, 4}, msg[:4])
	accounts := msg[4 : 4+4*32]
	assert.Equal(t, treasuryPub, []byte(accounts[0:32]))
	winnerPub, _ := base58.Decode(winnerAddr)
	assert.Equal(t, winnerPub, []byte(accounts[32:64]))
}

func TestSendPrizeRejectsInvalidWinnerAddress(t *testing.T) {
	sub := &fakeSubmitter{balance: 102_000_000, blockhash: base58.Encode(make([]byte, 32))}
	p, _ := newTestPayout(t, sub)

	_, err := p.SendPrize(context.Background(), "not-an-address")
	assert.Error(t, err)
}
