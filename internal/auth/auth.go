// Package auth verifies wallet ownership through detached ed25519
// signatures and gates admin endpoints behind a shared secret.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// VerifyWalletSignature checks that signature (base58) is a valid detached
// ed25519 signature of message under the wallet's public key. Any decode
// failure reads as an invalid signature, never as an error.
func VerifyWalletSignature(walletAddress, signature, message string) bool {
	pubKey, err := base58.Decode(walletAddress)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), []byte(message), sig)
}

// GenerateAuthChallenge builds a fresh message for the client to sign when
// opening a session. The timestamp and nonce make every challenge unique,
// so a captured signature cannot be replayed against a later challenge.
func GenerateAuthChallenge(walletAddress string) string {
	nonce := make([]byte, 8)
	rand.Read(nonce)
	return fmt.Sprintf("Claude Lotto Session\nWallet: %s\nTimestamp: %d\nNonce: %s",
		walletAddress, time.Now().UnixMilli(), hex.EncodeToString(nonce))
}

// VerifyAdminAuth checks a "Bearer <secret>" header against the configured
// admin secret in constant time. An empty configured secret always fails:
// misconfiguration must not open the admin surface.
func VerifyAdminAuth(authHeader, adminSecret string) bool {
	if authHeader == "" || adminSecret == "" {
		return false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(adminSecret)) == 1
}
