package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseSignatureHeader splits an `x-signature` header of the form
// "ts=<timestamp>,v1=<hex hmac>" into its two parts.
func ParseSignatureHeader(header string) (ts, v1 string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	return ts, v1, ts != "" && v1 != ""
}

// VerifyWebhookSignature checks the gateway signature over the canonical
// manifest id:{paymentId};request-id:{requestId};ts:{ts}; with HMAC-SHA256.
func VerifyWebhookSignature(secret, paymentID, requestID, ts, v1 string) bool {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(paymentID), requestID, ts)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(manifest))
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}
