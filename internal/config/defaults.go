// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// NETWORK
// =============================================================================

// DefaultEndpoint is the compute network API base URL.
const DefaultEndpoint = "https://api.zerochat.network"

// DefaultInvokeTimeout bounds one model invocation.
const DefaultInvokeTimeout = 120 * time.Second

// DefaultAccountTimeout bounds funding and balance calls.
const DefaultAccountTimeout = 15 * time.Second

// =============================================================================
// SESSION
// =============================================================================

// DefaultModelID is the model selected when none is configured.
const DefaultModelID = "llama-3.3-70b-instruct"

// Currency is the display unit for balances and prices.
const Currency = "A0GI"

// =============================================================================
// HISTORY
// =============================================================================

// DefaultHistoryPath is the transaction ledger database location. Empty means
// the in-memory store.
const DefaultHistoryPath = ""
