package authmodel

// VerifyOTPRequest is the JSON body for RouteVerifyOTP.
type VerifyOTPRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

// ResendOTPRequest is the JSON body for RouteResendOTP.
type ResendOTPRequest struct {
	Identifier string `json:"identifier"`
}
