package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/mr-tron/base58"
)

// Submitter is the RPC surface the payout path needs.
type Submitter interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, signedTxBase64 string) (string, error)
}

// Payout sends the pot to a winner. The split and rent reserve are fixed at
// construction; the pot balance is read fresh on every send so the prize
// reflects what players actually paid in.
type Payout struct {
	client       Submitter
	treasuryKey  ed25519.PrivateKey
	treasury     string
	devWallet    string
	winnerPct    float64
	devPct       float64
	rentLamports uint64
}

// NewPayout builds the payout sender. treasuryKeyBase58 is the treasury's
// 64-byte signing key in base58; the treasury address is derived from it
// rather than configured separately, so the two can never disagree.
func NewPayout(client Submitter, treasuryKeyBase58, devWallet string, winnerPct, devPct float64, rentLamports uint64) (*Payout, error) {
	raw, err := base58.Decode(treasuryKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode treasury key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("treasury key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	key := ed25519.PrivateKey(raw)
	treasury := base58.Encode(key.Public().(ed25519.PublicKey))

	return &Payout{
		client:       client,
		treasuryKey:  key,
		treasury:     treasury,
		devWallet:    devWallet,
		winnerPct:    winnerPct,
		devPct:       devPct,
		rentLamports: rentLamports,
	}, nil
}

// TreasuryAddress is the pot wallet players pay into.
func (p *Payout) TreasuryAddress() string {
	return p.treasury
}

// PotBalance returns the current spendable pot in lamports, after the rent
// reserve that keeps the treasury account alive.
func (p *Payout) PotBalance(ctx context.Context) (uint64, error) {
	balance, err := p.client.GetBalance(ctx, p.treasury)
	if err != nil {
		return 0, err
	}
	if balance <= p.rentLamports {
		return 0, nil
	}
	return balance - p.rentLamports, nil
}

// SendPrize transfers the winner's and developer's shares of the current pot
// in a single transaction and returns its signature.
func (p *Payout) SendPrize(ctx context.Context, winnerWallet string) (string, error) {
	pot, err := p.PotBalance(ctx)
	if err != nil {
		return "", fmt.Errorf("read pot balance: %w", err)
	}
	if pot == 0 {
		return "", fmt.Errorf("pot is empty")
	}

	winnerLamports := uint64(float64(pot) * p.winnerPct)
	devLamports := uint64(float64(pot) * p.devPct)

	blockhash, err := p.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := p.buildTransferTx(blockhash, winnerWallet, winnerLamports, devLamports)
	if err != nil {
		return "", err
	}

	signature, err := p.client.SendTransaction(ctx, base64.StdEncoding.EncodeToString(tx))
	if err != nil {
		return "", fmt.Errorf("submit payout: %w", err)
	}

	slog.Info("[Ledger] Prize sent",
		"winner", winnerWallet,
		"winnerLamports", winnerLamports,
		"devLamports", devLamports,
		"signature", signature)
	return signature, nil
}

// buildTransferTx assembles and signs a legacy transaction with two
// system-program transfers: treasury to winner and treasury to dev.
func (p *Payout) buildTransferTx(blockhash, winnerWallet string, winnerLamports, devLamports uint64) ([]byte, error) {
	treasuryPub := p.treasuryKey.Public().(ed25519.PublicKey)
	winnerPub, err := base58.Decode(winnerWallet)
	if err != nil || len(winnerPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid winner address %q", winnerWallet)
	}
	devPub, err := base58.Decode(p.devWallet)
	if err != nil || len(devPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid dev address %q", p.devWallet)
	}
	systemPub, err := base58.Decode(SystemProgramID)
	if err != nil {
		return nil, fmt.Errorf("decode system program id: %w", err)
	}
	blockhashBytes, err := base58.Decode(blockhash)
	if err != nil || len(blockhashBytes) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", blockhash)
	}

	// Account order fixes the indexes below: 0 treasury (signer, writable),
	// 1 winner, 2 dev, 3 system program (readonly).
	var msg []byte
	msg = append(msg, 1, 0, 1) // signatures, readonly signed, readonly unsigned
	msg = appendShortVecLen(msg, 4)
	msg = append(msg, treasuryPub...)
	msg = append(msg, winnerPub...)
	msg = append(msg, devPub...)
	msg = append(msg, systemPub...)
	msg = append(msg, blockhashBytes...)

	msg = appendShortVecLen(msg, 2)
	msg = appendTransferInstruction(msg, 3, 0, 1, winnerLamports)
	msg = appendTransferInstruction(msg, 3, 0, 2, devLamports)

	sig := ed25519.Sign(p.treasuryKey, msg)

	tx := make([]byte, 0, 1+len(sig)+len(msg))
	tx = appendShortVecLen(tx, 1)
	tx = append(tx, sig...)
	tx = append(tx, msg...)
	return tx, nil
}

// appendTransferInstruction serializes one compiled system-program transfer.
func appendTransferInstruction(msg []byte, programIdx, srcIdx, dstIdx byte, lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], transferInstructionType)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg = append(msg, programIdx)
	msg = appendShortVecLen(msg, 2)
	msg = append(msg, srcIdx, dstIdx)
	msg = appendShortVecLen(msg, len(data))
	msg = append(msg, data...)
	return msg
}

// appendShortVecLen writes a length in the ledger's compact-u16 encoding.
func appendShortVecLen(buf []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(buf, byte(n))
		}
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
}
