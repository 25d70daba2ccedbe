package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/msomdec/usergraph/internal/domain"
)

// Registration field limits. Lengths are counted in characters except
// MaxPasswordBytes, which mirrors bcrypt's input limit.
const (
	MinEmailLength    = 3
	MaxEmailLength    = 255
	MinPasswordLength = 3
	MaxPasswordBytes  = 72
)

// ValidateRegistration checks the registration input and returns every
// violated rule, email errors first. It returns nil when the input is valid.
func ValidateRegistration(email, password string) []domain.FieldError {
	var errs []domain.FieldError

	switch n := utf8.RuneCountInString(email); {
	case n < MinEmailLength:
		errs = append(errs, domain.NewFieldError(domain.PathEmail, domain.EmailTooShort))
	case n > MaxEmailLength:
		errs = append(errs, domain.NewFieldError(domain.PathEmail, domain.EmailTooLong))
	}
	if !isValidEmail(email) {
		errs = append(errs, domain.NewFieldError(domain.PathEmail, domain.EmailInvalid))
	}

	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		errs = append(errs, domain.NewFieldError(domain.PathPassword, domain.PasswordTooShort))
	case len(password) > MaxPasswordBytes:
		errs = append(errs, domain.NewFieldError(domain.PathPassword, domain.PasswordTooLong))
	}

	return errs
}

// isValidEmail accepts a bare addr-spec whose domain has at least two
// non-empty dot-separated labels. Display names and angle brackets are
// rejected.
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return false
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	labels := strings.Split(email[at+1:], ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || strings.HasPrefix(l, "-") || strings.HasSuffix(l, "-") {
			return false
		}
	}
	return true
}
