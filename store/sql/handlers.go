package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func userHandlers() repository.ModelHandlers[*userRecord] {
	return repository.ModelHandlers[*userRecord]{
		NewRecord: func() *userRecord {
			return &userRecord{}
		},
		GetID: func(record *userRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *userRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "email"
		},
		GetIdentifierValue: func(record *userRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Email)
		},
	}
}

// Profiles and limits share the owning user's id as their key.
func userProfileHandlers() repository.ModelHandlers[*userProfileRecord] {
	return repository.ModelHandlers[*userProfileRecord]{
		NewRecord: func() *userProfileRecord {
			return &userProfileRecord{}
		},
		GetID: func(record *userProfileRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.UserID)
		},
		SetID: func(record *userProfileRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.UserID = id.String()
		},
		GetIdentifier: func() string {
			return "user_id"
		},
		GetIdentifierValue: func(record *userProfileRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.UserID)
		},
	}
}

func usageLimitHandlers() repository.ModelHandlers[*usageLimitRecord] {
	return repository.ModelHandlers[*usageLimitRecord]{
		NewRecord: func() *usageLimitRecord {
			return &usageLimitRecord{}
		},
		GetID: func(record *usageLimitRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.UserID)
		},
		SetID: func(record *usageLimitRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.UserID = id.String()
		},
		GetIdentifier: func() string {
			return "user_id"
		},
		GetIdentifierValue: func(record *usageLimitRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.UserID)
		},
	}
}

func credentialHandlers() repository.ModelHandlers[*credentialRecord] {
	return repository.ModelHandlers[*credentialRecord]{
		NewRecord: func() *credentialRecord {
			return &credentialRecord{}
		},
		GetID: func(record *credentialRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *credentialRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *credentialRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func oauthStateHandlers() repository.ModelHandlers[*oauthStateRecord] {
	return repository.ModelHandlers[*oauthStateRecord]{
		NewRecord: func() *oauthStateRecord {
			return &oauthStateRecord{}
		},
		GetID: func(record *oauthStateRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *oauthStateRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "state"
		},
		GetIdentifierValue: func(record *oauthStateRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.State)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
