package gridgo

import "github.com/hupe1980/gridgo/nameindex"

// Dimension names one axis length shared by the variables of its defining
// group's subtree. A length of zero at definition time declares the
// dimension unlimited.
type Dimension struct {
	hdr nameindex.Header
	g   *Group

	length    int64
	unlimited bool
}

func (d *Dimension) Hdr() *nameindex.Header { return &d.hdr }

// Name returns the dimension name.
func (d *Dimension) Name() string { return d.hdr.Name }

// Len returns the current length. Unlimited dimensions report the extent
// reached so far, which is zero until data is written along them.
func (d *Dimension) Len() int64 { return d.length }

// Unlimited reports whether the dimension can grow.
func (d *Dimension) Unlimited() bool { return d.unlimited }

// Group returns the defining group.
func (d *Dimension) Group() *Group { return d.g }
