package grid

// Mask is a per-cell boolean bitmask over the grid, stored row-major like
// Field data. Masks are built from coordinate comparisons so region
// membership stays consistent with the physical layout in the problem file.
type Mask []bool

// NewMask allocates an all-false mask for the spec.
func (s Spec) NewMask() Mask {
	return make(Mask, s.Cells())
}

// Count returns the number of set cells.
func (m Mask) Count() int {
	n := 0
	for _, b := range m {
		if b {
			n++
		}
	}
	return n
}

// Intersects reports whether the two masks share a set cell.
func (m Mask) Intersects(other Mask) bool {
	for i := range m {
		if m[i] && other[i] {
			return true
		}
	}
	return false
}

// AbsorberMask marks every cell whose center lies within the lossy boundary
// layer, comparing cell-center coordinates against the layer extents.
func AbsorberMask(s Spec) Mask {
	m := s.NewMask()
	a := float64(s.AbsorberCells) * s.Delta
	w := float64(s.Nx) * s.Delta
	h := float64(s.Ny) * s.Delta
	for j := 0; j < s.Ny; j++ {
		y := s.Y(j)
		for i := 0; i < s.Nx; i++ {
			x := s.X(i)
			if x < a || x > w-a || y < a || y > h-a {
				m[s.Index(i, j)] = true
			}
		}
	}
	return m
}

// RegionMask marks every cell inside the region.
func RegionMask(s Spec, r Region) Mask {
	m := s.NewMask()
	for j := r.J0; j < r.J1; j++ {
		for i := r.I0; i < r.I1; i++ {
			m[s.Index(i, j)] = true
		}
	}
	return m
}

// StripMask marks a horizontal strip |y - centerY| <= width/2 between the
// given x extents. Used for waveguide cores.
func StripMask(s Spec, centerYUM, widthUM, x0UM, x1UM float64) Mask {
	m := s.NewMask()
	for j := 0; j < s.Ny; j++ {
		y := s.Y(j)
		if y < centerYUM-widthUM/2 || y > centerYUM+widthUM/2 {
			continue
		}
		for i := 0; i < s.Nx; i++ {
			x := s.X(i)
			if x >= x0UM && x <= x1UM {
				m[s.Index(i, j)] = true
			}
		}
	}
	return m
}
