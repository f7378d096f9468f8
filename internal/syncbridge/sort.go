package syncbridge

import (
	"sort"

	"github.com/drawmesh/canvas-sync/internal/element"
)

// SortElements orders elements by SortOrder ascending when both operands
// have one; otherwise the pair compares equal and a stable sort leaves
// insertion order intact — spec.md §4.3's sort-order contract.
func SortElements(elements []element.Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i].SortOrder, elements[j].SortOrder
		if a == nil || b == nil {
			return false
		}
		return *a < *b
	})
}
