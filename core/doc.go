// Package core contains the canonical storefront domain contracts,
// entities, and orchestration logic. Lower-level adapters must depend on
// this package; core must not depend on transport-specific adapters.
package core
