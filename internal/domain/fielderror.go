package domain

// Field paths reported in FieldError.Path.
const (
	PathEmail    = "email"
	PathPassword = "password"
)

// FieldError describes a user-correctable problem with a single input field.
// Registration failures are reported as ordered slices of these values
// rather than as Go errors.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// MessageCode identifies an entry in the message catalog.
type MessageCode string

const (
	DuplicateEmail   MessageCode = "DUPLICATE_EMAIL"
	EmailTooShort    MessageCode = "EMAIL_TOO_SHORT"
	EmailTooLong     MessageCode = "EMAIL_TOO_LONG"
	EmailInvalid     MessageCode = "EMAIL_INVALID"
	PasswordTooShort MessageCode = "PASSWORD_TOO_SHORT"
	PasswordTooLong  MessageCode = "PASSWORD_TOO_LONG"
)

// messages is the single source of user-facing text. Clients match on
// these strings, so changing one is a breaking API change.
var messages = map[MessageCode]string{
	DuplicateEmail:   "already taken",
	EmailTooShort:    "email must be at least 3 characters",
	EmailTooLong:     "email must be at most 255 characters",
	EmailInvalid:     "email must be a valid email",
	PasswordTooShort: "password must be at least 3 characters",
	PasswordTooLong:  "password must be at most 72 bytes",
}

// Message returns the catalog text for the code. Unknown codes return the
// code itself so a missing entry is visible rather than blank.
func (c MessageCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return string(c)
}

// NewFieldError builds a FieldError for path using the catalog text for code.
func NewFieldError(path string, code MessageCode) FieldError {
	return FieldError{Path: path, Message: code.Message()}
}
