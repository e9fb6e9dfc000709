package security

import (
	"regexp"
	"strings"

	"chainvote/pkg/data"
)

var (
	voterEmailPattern = regexp.MustCompile(`^[a-z]+\.[0-9]{10}@vit\.edu$`)
	otpPattern        = regexp.MustCompile(`^[0-9]{6}$`)
	markupReplacer    = strings.NewReplacer("<", "", ">", "")
)

// Messages shown for client-side rejections
const (
	MsgMissingFields     = "Please fill in all fields"
	MsgVoterEmailFormat  = "Invalid email format. Use: name.prnno@vit.edu (e.g., prem.1251040044@vit.edu)"
	MsgOTPFormat         = "Please enter a valid 6-digit OTP"
	MsgUnknownDepartment = "Please select a valid department"
)

// NormalizeEmail trims and lower-cases an email the way the login forms do
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateVoterEmail checks the institutional address format.
// The server re-checks; this only avoids a pointless round trip.
func ValidateVoterEmail(email string) error {
	if email == "" {
		return &data.ValidationError{Field: "email", Message: MsgMissingFields}
	}
	if !voterEmailPattern.MatchString(email) {
		return &data.ValidationError{Field: "email", Message: MsgVoterEmailFormat}
	}
	return nil
}

// ValidateOTP checks that code is exactly six digits
func ValidateOTP(code string) error {
	if !otpPattern.MatchString(code) {
		return &data.ValidationError{Field: "otp", Message: MsgOTPFormat}
	}
	return nil
}

// RequireFields returns a validation error naming the first empty value
func RequireFields(fields map[string]string, order ...string) error {
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			return &data.ValidationError{Field: name, Message: MsgMissingFields}
		}
	}
	return nil
}

// Sanitize strips angle brackets from server-provided text before display
func Sanitize(text string) string {
	return strings.TrimSpace(markupReplacer.Replace(text))
}
