package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/bloxhub/storefront/core"
)

type PurchaseIntentStore struct {
	db   *bun.DB
	repo repository.Repository[*purchaseIntentRecord]
}

func (s *PurchaseIntentStore) Create(ctx context.Context, in core.CreatePurchaseIntentInput) (core.PurchaseIntent, error) {
	if s == nil || s.repo == nil {
		return core.PurchaseIntent{}, fmt.Errorf("sqlstore: purchase intent store is not configured")
	}
	if strings.TrimSpace(in.MemberID) == "" {
		return core.PurchaseIntent{}, fmt.Errorf("sqlstore: member id is required")
	}
	if strings.TrimSpace(in.EntitlementID) == "" {
		return core.PurchaseIntent{}, fmt.Errorf("sqlstore: entitlement id is required")
	}

	record := newPurchaseIntentRecord(core.CreatePurchaseIntentInput{
		MemberID:      strings.TrimSpace(in.MemberID),
		RobloxUserID:  in.RobloxUserID,
		EntitlementID: strings.TrimSpace(in.EntitlementID),
		AssetID:       in.AssetID,
	}, time.Now().UTC())

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.PurchaseIntent{}, fmt.Errorf(
				"%w: member %s entitlement %s",
				core.ErrDuplicateIntent, record.MemberID, record.EntitlementID,
			)
		}
		return core.PurchaseIntent{}, err
	}
	return created.toDomain(), nil
}

func (s *PurchaseIntentStore) Get(ctx context.Context, id string) (core.PurchaseIntent, error) {
	if s == nil || s.db == nil {
		return core.PurchaseIntent{}, fmt.Errorf("sqlstore: purchase intent store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.PurchaseIntent{}, fmt.Errorf("sqlstore: purchase intent id is required")
	}
	record := &purchaseIntentRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.PurchaseIntent{}, fmt.Errorf("%w: id %s", core.ErrIntentNotFound, id)
		}
		return core.PurchaseIntent{}, err
	}
	return record.toDomain(), nil
}

func (s *PurchaseIntentStore) ListPending(ctx context.Context) ([]core.PurchaseIntent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: purchase intent store is not configured")
	}
	records := []*purchaseIntentRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.state = ?", string(core.IntentStatePending)).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.PurchaseIntent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *PurchaseIntentStore) ListByMember(ctx context.Context, memberID string) ([]core.PurchaseIntent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: purchase intent store is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, fmt.Errorf("sqlstore: member id is required")
	}
	records := []*purchaseIntentRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.member_id = ?", memberID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.PurchaseIntent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *PurchaseIntentStore) MarkChecked(ctx context.Context, id string, checkedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: purchase intent store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: purchase intent id is required")
	}
	checkedAt = checkedAt.UTC()
	result, err := s.db.NewUpdate().
		Model((*purchaseIntentRecord)(nil)).
		Set("check_count = check_count + 1").
		Set("last_checked_at = ?", checkedAt).
		Set("updated_at = ?", checkedAt).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, rowsErr := result.RowsAffected(); rowsErr == nil && rows == 0 {
		return fmt.Errorf("%w: id %s", core.ErrIntentNotFound, id)
	}
	return nil
}

// Transition applies the state change only while the stored row still
// holds the from state. The WHERE clause is the compare-and-set: a
// concurrent resolver that got there first leaves zero rows affected.
func (s *PurchaseIntentStore) Transition(
	ctx context.Context,
	id string,
	from core.IntentState,
	to core.IntentState,
	reason string,
	now time.Time,
) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: purchase intent store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("sqlstore: purchase intent id is required")
	}
	if !to.Valid() {
		return false, fmt.Errorf("sqlstore: unknown purchase intent state %q", to)
	}
	now = now.UTC()

	query := s.db.NewUpdate().
		Model((*purchaseIntentRecord)(nil)).
		Set("state = ?", string(to)).
		Set("failure_reason = ?", strings.TrimSpace(reason)).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", string(from))
	if to.Terminal() {
		query = query.Set("resolved_at = ?", now)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
