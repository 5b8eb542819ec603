package transposer

import "context"

// Stack describes an item occupying an inventory slot.
type Stack struct {
	// ItemID is the item's internal identifier (e.g. "mod:energycube").
	ItemID string `json:"item_id"`

	// Label is the human-readable display label. May be empty when the
	// platform cannot supply one.
	Label string `json:"label"`

	// Count is the number of items in the stack.
	Count int `json:"count"`
}

// Transposer is the narrow capability surface ferryd needs from the
// transfer hardware. The production implementation lives in
// internal/bridge; tests supply fakes.
//
// Error semantics are deliberately loose: a non-nil error from any
// method means "the call did not produce a usable answer", whether the
// side has no inventory, the bridge is unreachable, or the platform
// rejected the invocation. Callers in the scan and ferry paths degrade
// on error (skip the side, count a failed transfer); they never treat
// an adapter error as fatal.
type Transposer interface {
	// InventorySize returns the number of slots in the inventory
	// attached to the given side. Sides without an inventory return an
	// error.
	InventorySize(ctx context.Context, side Side) (int, error)

	// InventoryName returns the display name of the inventory attached
	// to the given side.
	InventoryName(ctx context.Context, side Side) (string, error)

	// StackInSlot returns the stack occupying the 1-based slot of the
	// inventory on the given side, or (nil, nil) when the slot is
	// empty.
	StackInSlot(ctx context.Context, side Side, slot int) (*Stack, error)

	// TransferItem moves up to count items from the first matching
	// slot on the from side into the inventory on the to side,
	// returning the number of items actually moved. Zero with a nil
	// error is a legitimate result: the platform accepted the call but
	// nothing could move.
	TransferItem(ctx context.Context, from, to Side, count int) (int, error)
}
