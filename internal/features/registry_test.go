package features

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	require.Equal(t, CreatePackage, Resolve("POST", "/api/packages"))
	require.Equal(t, CreateJob, Resolve("POST", "/api/jobs"))
	require.Equal(t, AcceptJob, Resolve("POST", "/api/jobs/:id/accept"))
	require.Equal(t, SendMessage, Resolve("POST", "/api/messages"))
	require.Equal(t, WithdrawFunds, Resolve("POST", "/api/wallet/withdrawals"))
	require.Equal(t, ShopCheckout, Resolve("POST", "/api/shop/checkout"))

	// Method matters: reading jobs is not creating them.
	require.Equal(t, GeneralAccess, Resolve("GET", "/api/jobs"))
	require.Equal(t, GeneralAccess, Resolve("GET", "/api/profile"))
	require.Equal(t, GeneralAccess, Resolve("", ""))
}

func TestPaymentDefaultSetsAreDisjoint(t *testing.T) {
	locked := map[string]bool{}
	for _, code := range PaymentDefaultLocked() {
		locked[code] = true
	}

	for _, code := range PaymentDefaultExempt() {
		require.False(t, locked[code], "code %s is both locked and exempt", code)
	}

	// Paying down the debt must never be in the locked set.
	require.False(t, locked[GeneralAccess])
	require.False(t, locked[SendMessage])
}
