package sqlstore

import (
	"time"

	"github.com/bloxhub/storefront/core"
)

func newLinkedAccountRecord(in core.CreateLinkedAccountInput, now time.Time) *linkedAccountRecord {
	return &linkedAccountRecord{
		MemberID:         in.MemberID,
		RobloxUserID:     in.RobloxUserID,
		RobloxUsername:   in.RobloxUsername,
		State:            string(in.State),
		VerificationCode: in.VerificationCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *linkedAccountRecord) toDomain() core.LinkedAccount {
	if r == nil {
		return core.LinkedAccount{}
	}
	return core.LinkedAccount{
		ID:               r.ID,
		MemberID:         r.MemberID,
		RobloxUserID:     r.RobloxUserID,
		RobloxUsername:   r.RobloxUsername,
		State:            core.LinkState(r.State),
		VerificationCode: r.VerificationCode,
		LinkedAt:         cloneTimePointer(r.LinkedAt),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func linkedAccountRecordFromDomain(account core.LinkedAccount) *linkedAccountRecord {
	return &linkedAccountRecord{
		ID:               account.ID,
		MemberID:         account.MemberID,
		RobloxUserID:     account.RobloxUserID,
		RobloxUsername:   account.RobloxUsername,
		State:            string(account.State),
		VerificationCode: account.VerificationCode,
		LinkedAt:         cloneTimePointer(account.LinkedAt),
		CreatedAt:        account.CreatedAt,
		UpdatedAt:        account.UpdatedAt,
	}
}

func newEntitlementRecord(in core.DefineEntitlementInput, now time.Time) *entitlementRecord {
	return &entitlementRecord{
		Name:        in.Name,
		AssetID:     in.AssetID,
		Description: in.Description,
		InviteURL:   in.InviteURL,
		PriceRobux:  in.PriceRobux,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *entitlementRecord) toDomain() core.EntitlementDefinition {
	if r == nil {
		return core.EntitlementDefinition{}
	}
	return core.EntitlementDefinition{
		ID:          r.ID,
		Name:        r.Name,
		AssetID:     r.AssetID,
		Description: r.Description,
		InviteURL:   r.InviteURL,
		PriceRobux:  r.PriceRobux,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newPurchaseIntentRecord(in core.CreatePurchaseIntentInput, now time.Time) *purchaseIntentRecord {
	return &purchaseIntentRecord{
		MemberID:      in.MemberID,
		RobloxUserID:  in.RobloxUserID,
		EntitlementID: in.EntitlementID,
		AssetID:       in.AssetID,
		State:         string(core.IntentStatePending),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *purchaseIntentRecord) toDomain() core.PurchaseIntent {
	if r == nil {
		return core.PurchaseIntent{}
	}
	return core.PurchaseIntent{
		ID:            r.ID,
		MemberID:      r.MemberID,
		RobloxUserID:  r.RobloxUserID,
		EntitlementID: r.EntitlementID,
		AssetID:       r.AssetID,
		State:         core.IntentState(r.State),
		FailureReason: r.FailureReason,
		CheckCount:    r.CheckCount,
		LastCheckedAt: cloneTimePointer(r.LastCheckedAt),
		ResolvedAt:    cloneTimePointer(r.ResolvedAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *grantAuditRecord) toDomain() core.GrantAudit {
	if r == nil {
		return core.GrantAudit{}
	}
	return core.GrantAudit{
		ID:            r.ID,
		IntentID:      r.IntentID,
		MemberID:      r.MemberID,
		EntitlementID: r.EntitlementID,
		GrantedAt:     r.GrantedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
