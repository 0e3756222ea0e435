package gateway

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTPVerifier is the step-up verification capability required before a
// max-tier caller may delete a preset: deleting a preset is destructive
// and hard to reverse, so max-tier accounts may opt into a TOTP challenge
// on top of ownership checks. Presets belonging to users who never
// enrolled a TOTP secret skip the check entirely (secret == "").
type OTPVerifier interface {
	Verify(secret, code string) bool
}

// totpVerifier is the production OTPVerifier, backed by pquerna/otp.
type totpVerifier struct{}

// NewTOTPVerifier builds the default OTPVerifier.
func NewTOTPVerifier() OTPVerifier { return totpVerifier{} }

func (totpVerifier) Verify(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: otp.DigitsSix,
	})
	if err != nil {
		return false
	}
	return ok
}
