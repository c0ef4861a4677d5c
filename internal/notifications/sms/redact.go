package sms

// RedactPhone masks a phone number for logging, keeping the leading "+" and
// country digit and the last four digits: "+15551234567" becomes
// "+1******4567". Numbers too short to keep both ends are fully masked.
func RedactPhone(phone string) string {
	if phone == "" {
		return ""
	}

	prefix := ""
	digits := phone
	if phone[0] == '+' {
		prefix, digits = "+", phone[1:]
	}
	if len(digits) <= 5 {
		return prefix + "***"
	}

	masked := make([]byte, len(digits)-5)
	for i := range masked {
		masked[i] = '*'
	}
	return prefix + digits[:1] + string(masked) + digits[len(digits)-4:]
}
