package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
)

// NormalizeWallet returns the EIP-55 checksummed form of a hex address.
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", ErrInvalidWallet
	}
	return common.HexToAddress(wallet).Hex(), nil
}

// PolicyNumber derives the deterministic policy number for a payer.
func PolicyNumber(payerID snowflake.ID) string {
	return PolicyNumberAttempt(payerID, 0)
}

// PolicyNumberAttempt widens the hash prefix by four characters per attempt.
// Attempt zero is the regular policy number.
func PolicyNumberAttempt(payerID snowflake.ID, attempt int) string {
	sum := sha256.Sum256([]byte(payerID.String()))
	digest := hex.EncodeToString(sum[:])
	width := 8 + 4*max(attempt, 0)
	if width > len(digest) {
		width = len(digest)
	}
	return "POL-" + strings.ToUpper(digest[:width])
}
