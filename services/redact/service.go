package redact

import (
	"regexp"
)

// rule pairs a detector with its typed placeholder. Rules run in
// order, so more specific patterns must precede broader ones (SSN and
// card numbers before phone, IPv6 before times).
type rule struct {
	pattern     *regexp.Regexp
	placeholder string
	validate    func(string) bool
}

var rules = []rule{
	{
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		placeholder: "[EMAIL_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
		placeholder: "[SSN_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`),
		placeholder: "[CARD_REDACTED]",
		validate:    luhnCheck,
	},
	{
		pattern:     regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`),
		placeholder: "[IP_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		placeholder: "[IP_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`(\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s][0-9]{3}[-.\s][0-9]{4}\b`),
		placeholder: "[PHONE_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`\b[0-9]{4}-[0-9]{2}-[0-9]{2}\b`),
		placeholder: "[DATE_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`\b[0-9]{1,2}/[0-9]{1,2}/[0-9]{2,4}\b`),
		placeholder: "[DATE_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+[0-9]{1,2}(?:,\s*[0-9]{4})?\b`),
		placeholder: "[DATE_REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`\b[0-9]{1,2}:[0-9]{2}(?::[0-9]{2})?\s?(?:[AaPp][Mm])?\b`),
		placeholder: "[TIME_REDACTED]",
	},
}

// Service scrubs personally identifying values from free text before
// it reaches the language model or the caller.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Redact replaces every detected value with its typed placeholder.
// Placeholders contain no digits or separators any rule can match, so
// running Redact over already redacted text is a no-op.
func (s *Service) Redact(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllStringFunc(text, func(match string) string {
			if r.validate != nil && !r.validate(match) {
				return match
			}
			return r.placeholder
		})
	}
	return text
}

// Detect reports whether the text contains anything Redact would
// replace.
func (s *Service) Detect(text string) bool {
	for _, r := range rules {
		for _, match := range r.pattern.FindAllString(text, -1) {
			if r.validate != nil && !r.validate(match) {
				continue
			}
			return true
		}
	}
	return false
}

// luhnCheck validates a candidate card number with the Luhn checksum
// so plain 16-digit identifiers are not over-redacted.
func luhnCheck(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}
