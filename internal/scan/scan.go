// Package scan discovers and classifies the inventories attached to a
// transposer. Discovery asks the adapter for an inventory size on each
// of the six connection points; classification assigns the charger and
// energy-store roles by matching display names against swappable
// predicates.
package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

// FallbackName is reported for inventories whose display name the
// platform cannot supply.
const FallbackName = "Unknown"

// Inventory describes one discovered inventory. It is transient scan
// output and is never persisted.
type Inventory struct {
	Side  transposer.Side `json:"side"`
	Slots int             `json:"slots"`
	Name  string          `json:"name"`
}

// Scan queries every connection point in fixed order and returns the
// sides that have an inventory attached. A side is included exactly
// when the adapter reports a positive inventory size; errors from the
// adapter mean "nothing attached here" and skip the side. One log line
// is emitted per discovered inventory.
func Scan(ctx context.Context, tp transposer.Transposer, logger *slog.Logger) map[transposer.Side]Inventory {
	if logger == nil {
		logger = slog.Default()
	}

	found := make(map[transposer.Side]Inventory)
	for _, side := range transposer.Sides {
		size, err := tp.InventorySize(ctx, side)
		if err != nil || size <= 0 {
			continue
		}

		name, err := tp.InventoryName(ctx, side)
		if err != nil || name == "" {
			name = FallbackName
		}

		inv := Inventory{Side: side, Slots: size, Name: name}
		found[side] = inv
		logger.Info("inventory discovered",
			"side", side.String(),
			"slots", size,
			"name", name,
		)
	}
	return found
}

// WriteReport renders a human-readable scan dump, one line per side in
// scan order. Used by the setup wizard and the scan subcommand.
func WriteReport(w io.Writer, invs map[transposer.Side]Inventory) {
	if len(invs) == 0 {
		fmt.Fprintln(w, "  (no inventories attached)")
		return
	}
	for _, side := range transposer.Sides {
		inv, ok := invs[side]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-6s %3d slots  %s\n", inv.Side, inv.Slots, inv.Name)
	}
}
