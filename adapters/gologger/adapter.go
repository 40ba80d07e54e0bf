// Package gologger resolves the loggers the storefront hands to its
// reconcile loop, command handlers, and queue workers, and bridges them
// onto the go-job logging contract so queue internals log through the
// same sink as the rest of the service.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Component names used when resolving loggers for the storefront's
// moving parts. Keeping them in one place lets log pipelines filter on
// a stable set of logger names.
const (
	ComponentService    = "storefront"
	ComponentReconciler = "storefront.reconciler"
	ComponentNotifier   = "storefront.notifier"
	ComponentCommands   = "storefront.commands"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForQueue resolves the notifier component logger and returns the
// go-job bridges alongside it, so the grant notification queue and its
// workers share the storefront's logging sink.
func ResolveForQueue(
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(ComponentNotifier, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
