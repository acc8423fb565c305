package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// newInvoiceNumber produces a globally unique, human-readable invoice number
// in the platform's INV-<millis>-<random> format.
func newInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%d-%s", now.UnixMilli(), randBase36(9))
}

// newTransactionNumber produces a provisional transaction reference for a
// payment intent; gateways overwrite it with their own id on confirmation.
func newTransactionNumber(now time.Time) string {
	return fmt.Sprintf("TXN-%d", now.UnixMilli())
}

func randBase36(n int) string {
	max := big.NewInt(int64(len(base36Alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is unrecoverable; fall back to a
			// time-derived digit rather than panicking in a billing path.
			out[i] = base36Alphabet[time.Now().UnixNano()%int64(len(base36Alphabet))]
			continue
		}
		out[i] = base36Alphabet[idx.Int64()]
	}
	return string(out)
}
