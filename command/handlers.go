package command

import (
	"context"
	"fmt"

	gocmd "github.com/goliatone/go-command"

	"github.com/bloxhub/storefront/core"
	"github.com/bloxhub/storefront/roblox"
)

// StorefrontService is the slice of the core service the command layer
// mutates through. Every handler stores a core.CommandResult envelope
// in the dispatch context so callers get the same {success, message,
// data} shape regardless of which operation ran.
type StorefrontService interface {
	BeginLink(ctx context.Context, memberID string) (core.LinkChallenge, error)
	ConfirmLink(ctx context.Context, req core.ConfirmLinkRequest) (core.LinkedAccount, error)
	Reverify(ctx context.Context, memberID string) (core.LinkChallenge, error)
	Unlink(ctx context.Context, memberID string) error
	DefineEntitlement(ctx context.Context, req core.DefineEntitlementRequest) (core.EntitlementDefinition, error)
	RemoveEntitlement(ctx context.Context, name string) error
	RequestPurchase(ctx context.Context, req core.RequestPurchaseRequest) (core.PurchaseTicket, error)
	Redeem(ctx context.Context, req core.RedeemRequest) (core.PurchaseTicket, error)
	CancelPurchase(ctx context.Context, memberID string, entitlementName string) error
	ReconcileTick(ctx context.Context) (core.TickReport, error)
}

type BeginLinkCommand struct {
	service StorefrontService
}

func NewBeginLinkCommand(service StorefrontService) *BeginLinkCommand {
	return &BeginLinkCommand{service: service}
}

func (c *BeginLinkCommand) Execute(ctx context.Context, msg BeginLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: begin link service is required")
	}
	challenge, err := c.service.BeginLink(ctx, msg.MemberID)
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(
		fmt.Sprintf("Add %s to your Roblox profile description, then confirm with your username.", challenge.VerificationCode),
		map[string]any{
			"verification_code": challenge.VerificationCode,
			"state":             string(challenge.Account.State),
		},
	))
	return nil
}

type ConfirmLinkCommand struct {
	service StorefrontService
}

func NewConfirmLinkCommand(service StorefrontService) *ConfirmLinkCommand {
	return &ConfirmLinkCommand{service: service}
}

func (c *ConfirmLinkCommand) Execute(ctx context.Context, msg ConfirmLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: confirm link service is required")
	}
	account, err := c.service.ConfirmLink(ctx, core.ConfirmLinkRequest{
		MemberID:       msg.MemberID,
		RobloxUsername: msg.RobloxUsername,
	})
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(
		fmt.Sprintf("Linked to Roblox account %s.", account.RobloxUsername),
		map[string]any{
			"roblox_username": account.RobloxUsername,
			"roblox_user_id":  account.RobloxUserID,
			"state":           string(account.State),
		},
	))
	return nil
}

type ReverifyCommand struct {
	service StorefrontService
}

func NewReverifyCommand(service StorefrontService) *ReverifyCommand {
	return &ReverifyCommand{service: service}
}

func (c *ReverifyCommand) Execute(ctx context.Context, msg ReverifyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reverify service is required")
	}
	challenge, err := c.service.Reverify(ctx, msg.MemberID)
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(
		fmt.Sprintf("Add %s to your Roblox profile description, then confirm with your username.", challenge.VerificationCode),
		map[string]any{
			"verification_code": challenge.VerificationCode,
			"state":             string(challenge.Account.State),
		},
	))
	return nil
}

type UnlinkCommand struct {
	service StorefrontService
}

func NewUnlinkCommand(service StorefrontService) *UnlinkCommand {
	return &UnlinkCommand{service: service}
}

func (c *UnlinkCommand) Execute(ctx context.Context, msg UnlinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unlink service is required")
	}
	if err := c.service.Unlink(ctx, msg.MemberID); err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult("Roblox account unlinked.", nil))
	return nil
}

type DefineEntitlementCommand struct {
	service StorefrontService
}

func NewDefineEntitlementCommand(service StorefrontService) *DefineEntitlementCommand {
	return &DefineEntitlementCommand{service: service}
}

func (c *DefineEntitlementCommand) Execute(ctx context.Context, msg DefineEntitlementMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: define entitlement service is required")
	}
	assetID, err := roblox.ParseGamePassRef(msg.AssetRef)
	if err != nil {
		return failCommand(ctx, commandWrapValidation(err, "command: invalid gamepass reference"))
	}
	definition, err := c.service.DefineEntitlement(ctx, core.DefineEntitlementRequest{
		Name:        msg.Name,
		AssetID:     assetID,
		Description: msg.Description,
		InviteURL:   msg.InviteURL,
	})
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(
		fmt.Sprintf("Entitlement %s registered.", definition.Name),
		map[string]any{
			"name":        definition.Name,
			"asset_id":    definition.AssetID,
			"price_robux": definition.PriceRobux,
		},
	))
	return nil
}

type RemoveEntitlementCommand struct {
	service StorefrontService
}

func NewRemoveEntitlementCommand(service StorefrontService) *RemoveEntitlementCommand {
	return &RemoveEntitlementCommand{service: service}
}

func (c *RemoveEntitlementCommand) Execute(ctx context.Context, msg RemoveEntitlementMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remove entitlement service is required")
	}
	if err := c.service.RemoveEntitlement(ctx, msg.Name); err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(fmt.Sprintf("Entitlement %s removed.", msg.Name), nil))
	return nil
}

type RequestPurchaseCommand struct {
	service StorefrontService
}

func NewRequestPurchaseCommand(service StorefrontService) *RequestPurchaseCommand {
	return &RequestPurchaseCommand{service: service}
}

func (c *RequestPurchaseCommand) Execute(ctx context.Context, msg RequestPurchaseMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: request purchase service is required")
	}
	ticket, err := c.service.RequestPurchase(ctx, msg.Request)
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, purchaseEnvelope(ticket))
	return nil
}

type RedeemCommand struct {
	service StorefrontService
}

func NewRedeemCommand(service StorefrontService) *RedeemCommand {
	return &RedeemCommand{service: service}
}

func (c *RedeemCommand) Execute(ctx context.Context, msg RedeemMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: redeem service is required")
	}
	req := msg.Request
	if msg.AssetRef != "" {
		assetID, parseErr := roblox.ParseGamePassRef(msg.AssetRef)
		if parseErr != nil {
			return failCommand(ctx, commandWrapValidation(parseErr, "command: invalid gamepass reference"))
		}
		req.AssetID = assetID
	}
	ticket, err := c.service.Redeem(ctx, req)
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, purchaseEnvelope(ticket))
	return nil
}

type CancelPurchaseCommand struct {
	service StorefrontService
}

func NewCancelPurchaseCommand(service StorefrontService) *CancelPurchaseCommand {
	return &CancelPurchaseCommand{service: service}
}

func (c *CancelPurchaseCommand) Execute(ctx context.Context, msg CancelPurchaseMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: cancel purchase service is required")
	}
	if err := c.service.CancelPurchase(ctx, msg.MemberID, msg.EntitlementName); err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(
		fmt.Sprintf("Purchase of %s cancelled.", msg.EntitlementName),
		nil,
	))
	return nil
}

type ReconcileNowCommand struct {
	service StorefrontService
}

func NewReconcileNowCommand(service StorefrontService) *ReconcileNowCommand {
	return &ReconcileNowCommand{service: service}
}

func (c *ReconcileNowCommand) Execute(ctx context.Context, msg ReconcileNowMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconcile service is required")
	}
	report, err := c.service.ReconcileTick(ctx)
	if err != nil {
		return failCommand(ctx, err)
	}
	storeResult(ctx, core.OKResult(
		fmt.Sprintf("Reconciled %d pending intents.", report.Scanned),
		map[string]any{
			"scanned":    report.Scanned,
			"completed":  report.Completed,
			"failed":     report.Failed,
			"unresolved": report.Unresolved,
			"errors":     report.Errors,
		},
	))
	return nil
}

func purchaseEnvelope(ticket core.PurchaseTicket) core.CommandResult {
	data := map[string]any{
		"intent_id":        ticket.Intent.ID,
		"entitlement_name": ticket.Entitlement.Name,
		"asset_id":         ticket.Entitlement.AssetID,
		"state":            string(ticket.Intent.State),
		"granted":          ticket.Granted,
	}
	if ticket.Granted {
		return core.OKResult(
			fmt.Sprintf("Purchase of %s confirmed. Enjoy!", ticket.Entitlement.Name),
			data,
		)
	}
	if ticket.PurchaseURL != "" {
		data["purchase_url"] = ticket.PurchaseURL
	}
	return core.OKResult(
		fmt.Sprintf("Purchase of %s is pending. Use redeem once you own the gamepass.", ticket.Entitlement.Name),
		data,
	)
}

// failCommand stores the failure envelope before handing the error back
// to the dispatcher, so callers read the same shape either way.
func failCommand(ctx context.Context, err error) error {
	storeResult(ctx, core.FailResultFromError(err))
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
