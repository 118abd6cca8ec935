// Package replay tracks recently accepted Merkle roots so a resubmitted batch
// skips the expensive signature check. The guard only gates signature
// verification: Merkle proofs and price upserts always run, since freshness
// is enforced independently by round monotonicity.
package replay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"oracle-pricefeed/internal/container"
	"oracle-pricefeed/internal/oracle"
)

// DefaultWindow is the default number of remembered roots.
const DefaultWindow = 500

// Guard is a bounded FIFO set of previously accepted roots.
type Guard struct {
	roots *container.BoundedSet[common.Hash]
}

// NewGuard builds a guard remembering up to window roots; window <= 0 selects
// DefaultWindow.
func NewGuard(window int) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{roots: container.NewBoundedSet[common.Hash](window)}
}

// Seen reports whether root was accepted within the retention window.
func (g *Guard) Seen(root common.Hash) bool {
	return g.roots.Contains(root)
}

// Record remembers root, evicting the oldest entry when full. Recording a
// root already present is a caller bug and fails with ErrDuplicateRoot.
func (g *Guard) Record(root common.Hash) error {
	if _, _, inserted := g.roots.Insert(root); !inserted {
		return fmt.Errorf("%s: %w", root.Hex(), oracle.ErrDuplicateRoot)
	}
	return nil
}

// Len returns the number of remembered roots.
func (g *Guard) Len() int {
	return g.roots.Len()
}
