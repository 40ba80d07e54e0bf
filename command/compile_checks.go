package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginLinkMessage]         = (*BeginLinkCommand)(nil)
	_ gocmd.Commander[ConfirmLinkMessage]       = (*ConfirmLinkCommand)(nil)
	_ gocmd.Commander[ReverifyMessage]          = (*ReverifyCommand)(nil)
	_ gocmd.Commander[UnlinkMessage]            = (*UnlinkCommand)(nil)
	_ gocmd.Commander[DefineEntitlementMessage] = (*DefineEntitlementCommand)(nil)
	_ gocmd.Commander[RemoveEntitlementMessage] = (*RemoveEntitlementCommand)(nil)
	_ gocmd.Commander[RequestPurchaseMessage]   = (*RequestPurchaseCommand)(nil)
	_ gocmd.Commander[RedeemMessage]            = (*RedeemCommand)(nil)
	_ gocmd.Commander[CancelPurchaseMessage]    = (*CancelPurchaseCommand)(nil)
	_ gocmd.Commander[ReconcileNowMessage]      = (*ReconcileNowCommand)(nil)
)
