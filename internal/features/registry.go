package features

// Feature codes identify protected capabilities independent of their routes.
const (
	CreatePackage = "CREATE_PACKAGE"
	CreateJob     = "CREATE_JOB"
	AcceptJob     = "ACCEPT_JOB"
	SendMessage   = "SEND_MESSAGE"
	WithdrawFunds = "WITHDRAW_FUNDS"
	ShopCheckout  = "SHOP_CHECKOUT"

	// GeneralAccess is the catch-all code assigned to routes without an
	// explicit mapping.
	GeneralAccess = "GENERAL_ACCESS"
)

type routeKey struct {
	Method string
	Path   string
}

// routeTable maps (method, route pattern) pairs to feature codes. Paths use
// gin's route patterns, matched against gin's FullPath for the request.
var routeTable = map[routeKey]string{
	{Method: "POST", Path: "/api/packages"}:           CreatePackage,
	{Method: "POST", Path: "/api/jobs"}:               CreateJob,
	{Method: "POST", Path: "/api/jobs/:id/accept"}:    AcceptJob,
	{Method: "POST", Path: "/api/messages"}:           SendMessage,
	{Method: "POST", Path: "/api/wallet/withdrawals"}: WithdrawFunds,
	{Method: "POST", Path: "/api/shop/checkout"}:      ShopCheckout,
}

var knownCodes = map[string]bool{
	CreatePackage: true,
	CreateJob:     true,
	AcceptJob:     true,
	SendMessage:   true,
	WithdrawFunds: true,
	ShopCheckout:  true,
	GeneralAccess: true,
}

// Known reports whether a feature code is registered.
func Known(code string) bool {
	return knownCodes[code]
}

// Resolve maps an invoked route to its feature code, defaulting to
// GeneralAccess for unmapped routes.
func Resolve(method, path string) string {
	if code, ok := routeTable[routeKey{Method: method, Path: path}]; ok {
		return code
	}
	return GeneralAccess
}

// PaymentDefaultLocked returns the feature set denied when a lockout is
// opened for overdue payment: everything revenue-generating stays blocked
// while messaging remains available so the parties can resolve the debt.
func PaymentDefaultLocked() []string {
	return []string{CreatePackage, CreateJob, AcceptJob, WithdrawFunds, ShopCheckout}
}

// PaymentDefaultExempt lists the codes an overdue-payment lockout explicitly
// leaves usable.
func PaymentDefaultExempt() []string {
	return []string{SendMessage, GeneralAccess}
}
