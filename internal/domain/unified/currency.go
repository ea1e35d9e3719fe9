package unified

import "golang.org/x/text/currency"

// ValidCurrency reports whether code is a well-formed ISO 4217 currency code.
// Provider payloads occasionally carry lowercase or padded codes; those are
// rejected here rather than silently normalized so the skip shows up in the
// sync counters.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	// ParseISO case-folds its input; require the canonical uppercase form.
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
