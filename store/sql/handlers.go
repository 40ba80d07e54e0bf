package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func linkedAccountHandlers() repository.ModelHandlers[*linkedAccountRecord] {
	return repository.ModelHandlers[*linkedAccountRecord]{
		NewRecord: func() *linkedAccountRecord {
			return &linkedAccountRecord{}
		},
		GetID: func(record *linkedAccountRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *linkedAccountRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *linkedAccountRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func entitlementHandlers() repository.ModelHandlers[*entitlementRecord] {
	return repository.ModelHandlers[*entitlementRecord]{
		NewRecord: func() *entitlementRecord {
			return &entitlementRecord{}
		},
		GetID: func(record *entitlementRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *entitlementRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *entitlementRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func purchaseIntentHandlers() repository.ModelHandlers[*purchaseIntentRecord] {
	return repository.ModelHandlers[*purchaseIntentRecord]{
		NewRecord: func() *purchaseIntentRecord {
			return &purchaseIntentRecord{}
		},
		GetID: func(record *purchaseIntentRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *purchaseIntentRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *purchaseIntentRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
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
