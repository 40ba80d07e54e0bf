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

type LinkedAccountStore struct {
	db   *bun.DB
	repo repository.Repository[*linkedAccountRecord]
}

func (s *LinkedAccountStore) Create(ctx context.Context, in core.CreateLinkedAccountInput) (core.LinkedAccount, error) {
	if s == nil || s.repo == nil {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: linked account store is not configured")
	}
	if strings.TrimSpace(in.MemberID) == "" {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: member id is required")
	}
	if in.RobloxUserID <= 0 {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: roblox user id is required")
	}
	state := in.State
	if strings.TrimSpace(string(state)) == "" {
		state = core.LinkStatePendingConfirmation
	}

	record := newLinkedAccountRecord(core.CreateLinkedAccountInput{
		MemberID:         strings.TrimSpace(in.MemberID),
		RobloxUserID:     in.RobloxUserID,
		RobloxUsername:   strings.TrimSpace(in.RobloxUsername),
		State:            state,
		VerificationCode: in.VerificationCode,
	}, time.Now().UTC())

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.LinkedAccount{}, err
	}
	return created.toDomain(), nil
}

func (s *LinkedAccountStore) Get(ctx context.Context, id string) (core.LinkedAccount, error) {
	if s == nil || s.db == nil {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: linked account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: linked account id is required")
	}
	record := &linkedAccountRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.LinkedAccount{}, fmt.Errorf("%w: id %s", core.ErrAccountNotFound, id)
		}
		return core.LinkedAccount{}, err
	}
	return record.toDomain(), nil
}

func (s *LinkedAccountStore) GetByMember(ctx context.Context, memberID string) (core.LinkedAccount, error) {
	if s == nil || s.db == nil {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: linked account store is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: member id is required")
	}
	record := &linkedAccountRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.member_id = ?", memberID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.LinkedAccount{}, fmt.Errorf("%w: member %s", core.ErrAccountNotFound, memberID)
		}
		return core.LinkedAccount{}, err
	}
	return record.toDomain(), nil
}

func (s *LinkedAccountStore) Save(ctx context.Context, account core.LinkedAccount) (core.LinkedAccount, error) {
	if s == nil || s.repo == nil {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: linked account store is not configured")
	}
	id := strings.TrimSpace(account.ID)
	if id == "" {
		return core.LinkedAccount{}, fmt.Errorf("sqlstore: linked account id is required")
	}
	record := linkedAccountRecordFromDomain(account)
	record.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, record, repository.UpdateByID(id))
	if err != nil {
		return core.LinkedAccount{}, err
	}
	return updated.toDomain(), nil
}

func (s *LinkedAccountStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: linked account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: linked account id is required")
	}
	result, err := s.db.NewDelete().
		Model((*linkedAccountRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, rowsErr := result.RowsAffected(); rowsErr == nil && rows == 0 {
		return fmt.Errorf("%w: id %s", core.ErrAccountNotFound, id)
	}
	return nil
}
