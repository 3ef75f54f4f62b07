package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainPrompt = "tether/prompt/v1"
	DomainReply  = "tether/reply/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PromptHash keys a rendered prompt in the exchange store.
// The prompt is NFC normalized first, so visually identical prompts collide.
func PromptHash(prompt string) string {
	data, err := MarshalCanonical(IRString(prompt))
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return hashWithDomain(DomainPrompt, data)
}

// ReplyHash computes a content hash of a reply value.
func ReplyHash(v IRValue) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ReplyHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainReply, data), nil
}
