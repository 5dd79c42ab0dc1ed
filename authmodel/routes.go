package authmodel

// Backend route constants. The paths, including the trailing slash on RouteUsers,
// are fixed by the backend and must not be normalised.
const (
	// Session issuance
	RouteToken     = "/auth/token"
	RouteVerifyOTP = "/auth/verify-otp"
	RouteResendOTP = "/auth/resend-otp"

	// Accounts
	RouteUsers = "/users/"
	RouteMe    = "/users/me"
)
