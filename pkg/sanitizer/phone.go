package sanitizer

import (
	"regexp"
	"strings"
)

var (
	rePhoneNoise = regexp.MustCompile(`[\s\-().]+`)
	reValidE164  = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// NormalizePhone reduces a phone number to E.164 form. Separators are
// stripped and an international 00 prefix is rewritten to +. Returns the
// empty string when the result is not a plausible E.164 number; callers
// treat that as "no phone supplied".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	phone = rePhoneNoise.ReplaceAllString(phone, "")
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}

	if !reValidE164.MatchString(phone) {
		return ""
	}
	return phone
}
