package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"workspace-chat/errors"
)

// MaxContentLength is the upper bound on one chat message. Longer
// payloads are rejected, never truncated.
const MaxContentLength = 500

var validate = validator.New()

type pseudoRequest struct {
	Pseudo string `validate:"required,min=2,max=20"`
}

// ValidatePseudo checks the display name rules: 2-20 characters from a
// restricted set (letters including accented ones, digits, space,
// underscore, dash).
func ValidatePseudo(pseudo string) error {
	if err := validate.Struct(pseudoRequest{Pseudo: pseudo}); err != nil {
		return errors.ErrInvalidPseudo
	}
	if !isPseudoCharset(pseudo) {
		return errors.ErrInvalidPseudo
	}
	return nil
}

func isPseudoCharset(s string) bool {
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		case r == ' ' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ValidateContent checks one message body after trimming. Empty and
// oversized messages are both rejected.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errors.ErrMessageTooLong
	}
	return nil
}

// ValidateAuthor guards the store against rows with no sender. The name
// is the one bound at send time and is not re-checked against the
// registry.
func ValidateAuthor(author string) error {
	if strings.TrimSpace(author) == "" {
		return errors.ErrEmptyAuthor
	}
	return nil
}
