package storefront

import (
	"fmt"

	storefrontcommand "github.com/bloxhub/storefront/command"
	"github.com/bloxhub/storefront/core"
)

// CommandService is the surface the facade needs from a storefront
// implementation. *core.Service satisfies it.
type CommandService interface {
	storefrontcommand.StorefrontService
}

// Commands bundles one handler per storefront operation, ready to hand
// to a dispatcher or invoke directly.
type Commands struct {
	BeginLink         *storefrontcommand.BeginLinkCommand
	ConfirmLink       *storefrontcommand.ConfirmLinkCommand
	Reverify          *storefrontcommand.ReverifyCommand
	Unlink            *storefrontcommand.UnlinkCommand
	DefineEntitlement *storefrontcommand.DefineEntitlementCommand
	RemoveEntitlement *storefrontcommand.RemoveEntitlementCommand
	RequestPurchase   *storefrontcommand.RequestPurchaseCommand
	Redeem            *storefrontcommand.RedeemCommand
	CancelPurchase    *storefrontcommand.CancelPurchaseCommand
	ReconcileNow      *storefrontcommand.ReconcileNowCommand
}

type Facade struct {
	service  CommandService
	commands Commands
	runner   *core.ReconcileRunner
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	runner *core.ReconcileRunner
}

// WithReconcileRunner overrides the runner the facade would otherwise
// build from the service.
func WithReconcileRunner(runner *core.ReconcileRunner) FacadeOption {
	return func(options *facadeOptions) {
		options.runner = runner
	}
}

func NewFacade(service CommandService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("storefront: command service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	runner := cfg.runner
	if runner == nil {
		runner = resolveReconcileRunner(service)
	}

	facade := &Facade{service: service, runner: runner}
	facade.commands = Commands{
		BeginLink:         storefrontcommand.NewBeginLinkCommand(service),
		ConfirmLink:       storefrontcommand.NewConfirmLinkCommand(service),
		Reverify:          storefrontcommand.NewReverifyCommand(service),
		Unlink:            storefrontcommand.NewUnlinkCommand(service),
		DefineEntitlement: storefrontcommand.NewDefineEntitlementCommand(service),
		RemoveEntitlement: storefrontcommand.NewRemoveEntitlementCommand(service),
		RequestPurchase:   storefrontcommand.NewRequestPurchaseCommand(service),
		Redeem:            storefrontcommand.NewRedeemCommand(service),
		CancelPurchase:    storefrontcommand.NewCancelPurchaseCommand(service),
		ReconcileNow:      storefrontcommand.NewReconcileNowCommand(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() CommandService {
	if f == nil {
		return nil
	}
	return f.service
}

// Runner returns the background reconcile runner, or nil when the
// service cannot drive one and none was supplied.
func (f *Facade) Runner() *core.ReconcileRunner {
	if f == nil {
		return nil
	}
	return f.runner
}

func resolveReconcileRunner(service CommandService) *core.ReconcileRunner {
	concrete, ok := service.(*core.Service)
	if !ok {
		return nil
	}
	runner, err := core.NewReconcileRunner(concrete)
	if err != nil {
		return nil
	}
	return runner
}
