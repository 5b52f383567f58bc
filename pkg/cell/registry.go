package cell

import (
	"fmt"

	"github.com/lasso-embedded/host/pkg/errno"
)

// Registry is the ordered, append-only list of data cells:
// the source of truth for sampling, parameter queries, and writes.
// Registration order is the client-visible index.
type Registry struct {
	cells []*Cell
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a cell and returns its client-visible index. A cell
// with no memory binding is rejected with EFAULT: there is
// nothing to sample or write.
func (r *Registry) Register(c *Cell) (int, error) {
	if c.Binding.read == nil {
		return 0, errno.EFAULT
	}
	if c.Writable() && c.Binding.write == nil {
		return 0, errno.EFAULT
	}
	r.cells = append(r.cells, c)
	return len(r.cells) - 1, nil
}

// Count returns the number of registered cells.
func (r *Registry) Count() int { return len(r.cells) }

// At returns the cell at index, or nil if out of range.
func (r *Registry) At(index int) *Cell {
	if index < 0 || index >= len(r.cells) {
		return nil
	}
	return r.cells[index]
}

// All returns the registered cells in registration order. Callers must
// not mutate the returned slice's backing array.
func (r *Registry) All() []*Cell { return r.cells }

// Seek walks the list counting enabled cells' contributions to compute
// the payload byte offset of cells[index] within the strobe.
// It returns the cell and its offset, or an error if index is out of
// range.
func (r *Registry) Seek(index int) (*Cell, int, error) {
	c := r.At(index)
	if c == nil {
		return nil, 0, fmt.Errorf("cell: index %d out of range", index)
	}
	offset := 0
	for i := 0; i < index; i++ {
		if r.cells[i].Enabled() {
			offset += r.cells[i].StrobeContribution()
		}
	}
	return c, offset, nil
}

// StrobeLength returns the sum of StrobeContribution() over all
// currently enabled cells: the byte length of the next strobe payload
// before encoding overhead.
func (r *Registry) StrobeLength() int {
	total := 0
	for _, c := range r.cells {
		if c.Enabled() {
			total += c.StrobeContribution()
		}
	}
	return total
}
