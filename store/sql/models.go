package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type linkedAccountRecord struct {
	bun.BaseModel `bun:"table:storefront_linked_accounts,alias:sla"`

	ID               string     `bun:"id,pk"`
	MemberID         string     `bun:"member_id,notnull,unique"`
	RobloxUserID     int64      `bun:"roblox_user_id,notnull"`
	RobloxUsername   string     `bun:"roblox_username,notnull"`
	State            string     `bun:"state,notnull"`
	VerificationCode string     `bun:"verification_code"`
	LinkedAt         *time.Time `bun:"linked_at,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type entitlementRecord struct {
	bun.BaseModel `bun:"table:storefront_entitlements,alias:se"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull,unique"`
	AssetID     int64     `bun:"asset_id,notnull,unique"`
	Description string    `bun:"description"`
	InviteURL   string    `bun:"invite_url"`
	PriceRobux  int64     `bun:"price_robux,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type purchaseIntentRecord struct {
	bun.BaseModel `bun:"table:storefront_purchase_intents,alias:spi"`

	ID            string     `bun:"id,pk"`
	MemberID      string     `bun:"member_id,notnull"`
	RobloxUserID  int64      `bun:"roblox_user_id,notnull"`
	EntitlementID string     `bun:"entitlement_id,notnull"`
	AssetID       int64      `bun:"asset_id,notnull"`
	State         string     `bun:"state,notnull"`
	FailureReason string     `bun:"failure_reason"`
	CheckCount    int        `bun:"check_count,notnull,default:0"`
	LastCheckedAt *time.Time `bun:"last_checked_at,nullzero"`
	ResolvedAt    *time.Time `bun:"resolved_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type grantAuditRecord struct {
	bun.BaseModel `bun:"table:storefront_grant_audits,alias:sga"`

	ID            string    `bun:"id,pk"`
	IntentID      string    `bun:"intent_id,notnull,unique"`
	MemberID      string    `bun:"member_id,notnull"`
	EntitlementID string    `bun:"entitlement_id,notnull"`
	GrantedAt     time.Time `bun:"granted_at,nullzero,notnull"`
}
