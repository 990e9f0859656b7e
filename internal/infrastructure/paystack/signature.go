package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

const SignatureHeader = "x-paystack-signature"

// Signer checks webhook bodies against the HMAC-SHA512 Paystack computes with
// the account secret key.
type Signer struct {
	secret []byte
}

func NewSigner(secretKey string) *Signer {
	return &Signer{secret: []byte(secretKey)}
}

func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty signature never verifies.
func (s *Signer) Verify(body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
