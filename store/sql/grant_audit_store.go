package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bloxhub/storefront/core"
)

type GrantAuditStore struct {
	db *bun.DB
}

func NewGrantAuditStore(db *bun.DB) (*GrantAuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &GrantAuditStore{db: db}, nil
}

// Append inserts at most one audit row per intent. The unique index on
// intent_id is the exactly-once gate: the first writer creates the row,
// every later writer sees a unique violation and reports created=false.
func (s *GrantAuditStore) Append(ctx context.Context, audit core.GrantAudit) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: grant audit store is not configured")
	}
	intentID := strings.TrimSpace(audit.IntentID)
	if intentID == "" {
		return false, fmt.Errorf("sqlstore: intent id is required")
	}
	grantedAt := audit.GrantedAt
	if grantedAt.IsZero() {
		grantedAt = time.Now().UTC()
	}

	record := &grantAuditRecord{
		ID:            uuid.NewString(),
		IntentID:      intentID,
		MemberID:      strings.TrimSpace(audit.MemberID),
		EntitlementID: strings.TrimSpace(audit.EntitlementID),
		GrantedAt:     grantedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *GrantAuditStore) GetByIntent(ctx context.Context, intentID string) (core.GrantAudit, error) {
	if s == nil || s.db == nil {
		return core.GrantAudit{}, fmt.Errorf("sqlstore: grant audit store is not configured")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return core.GrantAudit{}, fmt.Errorf("sqlstore: intent id is required")
	}
	record := &grantAuditRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.intent_id = ?", intentID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.GrantAudit{}, fmt.Errorf("%w: intent %s", core.ErrAuditNotFound, intentID)
		}
		return core.GrantAudit{}, err
	}
	return record.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
