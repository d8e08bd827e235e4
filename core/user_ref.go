package core

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// EmailFallbackPrefix marks externally issued session identifiers that embed
// an email instead of a canonical user id, e.g. "user-jane@example.com".
const EmailFallbackPrefix = "user-"

type UserRefKind string

const (
	UserRefCanonical     UserRefKind = "canonical"
	UserRefEmailFallback UserRefKind = "email_fallback"
)

// UserRef is a caller supplied user identifier. It is parsed once at the
// boundary and resolved to a canonical id by a UserResolver.
type UserRef struct {
	Kind  UserRefKind
	Value string
}

func CanonicalUserRef(id string) UserRef {
	return UserRef{Kind: UserRefCanonical, Value: strings.TrimSpace(id)}
}

func EmailFallbackUserRef(email string) UserRef {
	return UserRef{Kind: UserRefEmailFallback, Value: NormalizeEmail(email)}
}

// ParseUserRef is the only place that understands the email fallback
// convention. Anything that is neither a UUID nor a fallback identifier is
// rejected.
func ParseUserRef(raw string) (UserRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserRef{}, badInputError("user identifier is required", "user_id")
	}
	if strings.HasPrefix(trimmed, EmailFallbackPrefix) {
		email := NormalizeEmail(strings.TrimPrefix(trimmed, EmailFallbackPrefix))
		if err := ValidateEmail(email); err != nil {
			return UserRef{}, badInputError("user identifier carries an invalid email", "user_id")
		}
		return UserRef{Kind: UserRefEmailFallback, Value: email}, nil
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return UserRef{}, badInputError(
			fmt.Sprintf("user identifier %q is neither a canonical id nor an email fallback", trimmed),
			"user_id",
		)
	}
	return UserRef{Kind: UserRefCanonical, Value: parsed.String()}, nil
}

func (r UserRef) Validate() error {
	switch r.Kind {
	case UserRefCanonical:
		if _, err := uuid.Parse(strings.TrimSpace(r.Value)); err != nil {
			return badInputError("canonical user id is malformed", "user_id")
		}
	case UserRefEmailFallback:
		if err := ValidateEmail(r.Value); err != nil {
			return badInputError("fallback user email is invalid", "user_id")
		}
	default:
		return badInputError("user identifier is required", "user_id")
	}
	return nil
}

func (r UserRef) String() string {
	if r.Kind == UserRefEmailFallback {
		return EmailFallbackPrefix + r.Value
	}
	return r.Value
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("core: email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("core: email %q is invalid", email)
	}
	return nil
}
