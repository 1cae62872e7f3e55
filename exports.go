package cocoa

import "github.com/xraph/cocoa/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	NGN        = types.NGN
	GHS        = types.GHS
	USD        = types.USD
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMajor = types.ParseMajor
)
