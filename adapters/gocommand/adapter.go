// Package gocommand wires the storefront command set into a go-command
// registry and dispatcher, so callers can dispatch link, entitlement,
// and purchase messages without touching the service directly.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	storefrontcommand "github.com/bloxhub/storefront/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterStorefrontCommands registers and subscribes the full storefront
// command set against the given service. The returned subscriptions are in
// registration order; callers own their lifecycle.
func RegisterStorefrontCommands(
	adapter *RegistryAdapter,
	service storefrontcommand.StorefrontService,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: storefront service is required")
	}

	subscriptions := make([]commanddispatcher.Subscription, 0, 10)
	unsubscribeAll := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}

	register := func(fn func() (commanddispatcher.Subscription, error)) error {
		subscription, err := fn()
		if err != nil {
			unsubscribeAll()
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewBeginLinkCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewConfirmLinkCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewReverifyCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewUnlinkCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewDefineEntitlementCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewRemoveEntitlementCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewRequestPurchaseCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewRedeemCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewCancelPurchaseCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, storefrontcommand.NewReconcileNowCommand(service), runnerOpts...)
		},
	}

	for _, step := range steps {
		if err := register(step); err != nil {
			return nil, err
		}
	}
	return subscriptions, nil
}
