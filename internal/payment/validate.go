package payment

import "strings"

// Validation policy for the wizard. Shape checks only; nothing here talks to
// the gateway.

const minCardDigits = 15

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func groupBy4(s string) string {
	var groups []string
	for i := 0; i < len(s); i += 4 {
		end := i + 4
		if end > len(s) {
			end = len(s)
		}
		groups = append(groups, s[i:end])
	}
	return strings.Join(groups, " ")
}

// FormatCardNumber strips non-digits and regroups in blocks of 4 for display.
func FormatCardNumber(raw string) string {
	return groupBy4(digitsOnly(raw))
}

// MaskCardNumber hides all but the last four digits, keeping the display
// grouping.
func MaskCardNumber(raw string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	keep := 4
	if len(digits) < keep {
		keep = len(digits)
	}
	masked := strings.Repeat("*", len(digits)-keep) + digits[len(digits)-keep:]
	return groupBy4(masked)
}

// ValidCardNumber requires at least 15 raw digits.
func ValidCardNumber(number string) bool {
	digits := digitsOnly(number)
	return len(digits) >= minCardDigits && digits == strings.ReplaceAll(number, " ", "")
}

// ValidExpiry requires the exact MM/YY shape.
func ValidExpiry(expiry string) bool {
	if len(expiry) != 5 || expiry[2] != '/' {
		return false
	}
	mm, yy := expiry[:2], expiry[3:]
	if !isDigits(mm) || !isDigits(yy) {
		return false
	}
	return mm >= "01" && mm <= "12"
}

// ValidCVV requires 3 or 4 digits.
func ValidCVV(cvv string) bool {
	return isDigits(cvv) && (len(cvv) == 3 || len(cvv) == 4)
}

// ValidMomoPhone requires at least 10 digits.
func ValidMomoPhone(phone string) bool {
	return isDigits(phone) && len(phone) >= 10
}

// ValidCard applies the full card shape policy.
func ValidCard(card CardInput) bool {
	return ValidCardNumber(card.Number) && ValidExpiry(card.Expiry) && ValidCVV(card.CVV)
}

// CanProceed reports whether the wizard's action is allowed for the current
// step. This is the enabled/disabled predicate for the proceed action.
func CanProceed(s *Session) bool {
	switch s.Step {
	case StepSelection:
		return s.Method == MethodCard || s.Method == MethodMomo
	case StepDetails:
		if s.Method == MethodCard {
			return ValidCard(s.Card)
		}
		return ValidMomoPhone(s.Momo.PhoneNumber)
	case StepPIN:
		return s.pin() != ""
	case StepOTP:
		return s.otp() != ""
	default:
		return false
	}
}
