package command

import (
	"fmt"
	"strings"

	"github.com/bloxhub/storefront/core"
)

const (
	TypeBeginLink         = "storefront.command.link.begin"
	TypeConfirmLink       = "storefront.command.link.confirm"
	TypeReverify          = "storefront.command.link.reverify"
	TypeUnlink            = "storefront.command.link.remove"
	TypeDefineEntitlement = "storefront.command.entitlement.define"
	TypeRemoveEntitlement = "storefront.command.entitlement.remove"
	TypeRequestPurchase   = "storefront.command.purchase.request"
	TypeRedeem            = "storefront.command.purchase.redeem"
	TypeCancelPurchase    = "storefront.command.purchase.cancel"
	TypeReconcileNow      = "storefront.command.reconcile.run"
)

type BeginLinkMessage struct {
	MemberID string
}

func (BeginLinkMessage) Type() string { return TypeBeginLink }

func (m BeginLinkMessage) Validate() error {
	if strings.TrimSpace(m.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	return nil
}

// ConfirmLinkMessage names the Roblox account the member claims to
// control; the claim is resolved and verified at confirmation time.
type ConfirmLinkMessage struct {
	MemberID       string
	RobloxUsername string
}

func (ConfirmLinkMessage) Type() string { return TypeConfirmLink }

func (m ConfirmLinkMessage) Validate() error {
	if strings.TrimSpace(m.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	if strings.TrimSpace(m.RobloxUsername) == "" {
		return fmt.Errorf("command: roblox username is required")
	}
	return nil
}

type ReverifyMessage struct {
	MemberID string
}

func (ReverifyMessage) Type() string { return TypeReverify }

func (m ReverifyMessage) Validate() error {
	if strings.TrimSpace(m.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	return nil
}

type UnlinkMessage struct {
	MemberID string
}

func (UnlinkMessage) Type() string { return TypeUnlink }

func (m UnlinkMessage) Validate() error {
	if strings.TrimSpace(m.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	return nil
}

// DefineEntitlementMessage registers a gamepass-backed entitlement.
// AssetRef accepts a bare numeric gamepass ID or a roblox.com link.
type DefineEntitlementMessage struct {
	Name        string
	AssetRef    string
	Description string
	InviteURL   string
}

func (DefineEntitlementMessage) Type() string { return TypeDefineEntitlement }

func (m DefineEntitlementMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return commandValidationError("name", "entitlement name is required")
	}
	if strings.TrimSpace(m.AssetRef) == "" {
		return commandValidationError("asset_ref", "gamepass id or link is required")
	}
	return nil
}

type RemoveEntitlementMessage struct {
	Name string
}

func (RemoveEntitlementMessage) Type() string { return TypeRemoveEntitlement }

func (m RemoveEntitlementMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: entitlement name is required")
	}
	return nil
}

type RequestPurchaseMessage struct {
	Request core.RequestPurchaseRequest
}

func (RequestPurchaseMessage) Type() string { return TypeRequestPurchase }

func (m RequestPurchaseMessage) Validate() error {
	if strings.TrimSpace(m.Request.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	if strings.TrimSpace(m.Request.EntitlementName) == "" {
		return fmt.Errorf("command: entitlement name is required")
	}
	return nil
}

// RedeemMessage claims a purchase the buyer believes they completed.
// The entitlement is named explicitly or inferred from AssetRef, a bare
// gamepass ID or roblox.com link of the pass that was bought.
type RedeemMessage struct {
	Request  core.RedeemRequest
	AssetRef string
}

func (RedeemMessage) Type() string { return TypeRedeem }

func (m RedeemMessage) Validate() error {
	if strings.TrimSpace(m.Request.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	if strings.TrimSpace(m.Request.EntitlementName) == "" &&
		strings.TrimSpace(m.AssetRef) == "" && m.Request.AssetID == 0 {
		return fmt.Errorf("command: entitlement name or gamepass reference is required")
	}
	return nil
}

type CancelPurchaseMessage struct {
	MemberID        string
	EntitlementName string
}

func (CancelPurchaseMessage) Type() string { return TypeCancelPurchase }

func (m CancelPurchaseMessage) Validate() error {
	if strings.TrimSpace(m.MemberID) == "" {
		return fmt.Errorf("command: member id is required")
	}
	if strings.TrimSpace(m.EntitlementName) == "" {
		return fmt.Errorf("command: entitlement name is required")
	}
	return nil
}

type ReconcileNowMessage struct{}

func (ReconcileNowMessage) Type() string { return TypeReconcileNow }

func (ReconcileNowMessage) Validate() error { return nil }
