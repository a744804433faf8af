package domain

import "errors"

// Expected, user-facing errors. Callers match these with errors.Is and
// surface them for display.
var (
	ErrUnsupportedSymbol      = errors.New("unsupported symbol")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrNotFound               = errors.New("position not found")
)

// Unexpected-state errors. These indicate a configuration defect or a
// programming error and must be logged loudly, never silently substituted.
var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrDuplicateID      = errors.New("duplicate position id")
)
