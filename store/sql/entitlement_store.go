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

type EntitlementStore struct {
	db   *bun.DB
	repo repository.Repository[*entitlementRecord]
}

func (s *EntitlementStore) Create(ctx context.Context, in core.DefineEntitlementInput) (core.EntitlementDefinition, error) {
	if s == nil || s.repo == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement name is required")
	}
	if in.AssetID <= 0 {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: asset id is required")
	}

	record := newEntitlementRecord(core.DefineEntitlementInput{
		Name:        name,
		AssetID:     in.AssetID,
		Description: strings.TrimSpace(in.Description),
		InviteURL:   strings.TrimSpace(in.InviteURL),
		PriceRobux:  in.PriceRobux,
	}, time.Now().UTC())

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			if violatesAssetUniqueness(err) {
				return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: gamepass already backs another entitlement: %w", err)
			}
			return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement name already in use: %w", err)
		}
		return core.EntitlementDefinition{}, err
	}
	return created.toDomain(), nil
}

// violatesAssetUniqueness tells which unique index rejected the row.
// SQLite names the column (storefront_entitlements.asset_id), postgres
// names the index (ux_storefront_entitlements_asset); both mention the
// asset, the name index mentions neither.
func violatesAssetUniqueness(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "asset")
}

func (s *EntitlementStore) Get(ctx context.Context, id string) (core.EntitlementDefinition, error) {
	if s == nil || s.db == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement id is required")
	}
	record := &entitlementRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.EntitlementDefinition{}, fmt.Errorf("%w: id %s", core.ErrEntitlementNotFound, id)
		}
		return core.EntitlementDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *EntitlementStore) GetByName(ctx context.Context, name string) (core.EntitlementDefinition, error) {
	if s == nil || s.db == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement name is required")
	}
	record := &entitlementRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("lower(?TableAlias.name) = lower(?)", name).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.EntitlementDefinition{}, fmt.Errorf("%w: name %s", core.ErrEntitlementNotFound, name)
		}
		return core.EntitlementDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *EntitlementStore) GetByAssetID(ctx context.Context, assetID int64) (core.EntitlementDefinition, error) {
	if s == nil || s.db == nil {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	if assetID <= 0 {
		return core.EntitlementDefinition{}, fmt.Errorf("sqlstore: asset id is required")
	}
	record := &entitlementRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.asset_id = ?", assetID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.EntitlementDefinition{}, fmt.Errorf("%w: asset %d", core.ErrEntitlementNotFound, assetID)
		}
		return core.EntitlementDefinition{}, err
	}
	return record.toDomain(), nil
}

func (s *EntitlementStore) List(ctx context.Context) ([]core.EntitlementDefinition, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	records := []*entitlementRecord{}
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("lower(?TableAlias.name) ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.EntitlementDefinition, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *EntitlementStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: entitlement store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: entitlement id is required")
	}
	result, err := s.db.NewDelete().
		Model((*entitlementRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, rowsErr := result.RowsAffected(); rowsErr == nil && rows == 0 {
		return fmt.Errorf("%w: id %s", core.ErrEntitlementNotFound, id)
	}
	return nil
}
