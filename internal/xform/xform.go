// SPDX-License-Identifier: MPL-2.0

// Package xform computes the rotation matrices passed to the slicing engine.
package xform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type (
	// Matrix is a row-major 3x3 matrix.
	Matrix [3][3]float64

	// Rotation holds Euler angles in degrees about the fixed X, Y and Z axes.
	Rotation struct {
		X, Y, Z float64
	}
)

// Identity is the rotation that leaves a mesh unchanged.
var Identity = Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Matrix returns Rz·Ry·Rx. Sines and cosines are rounded to six decimals
// before composition so that right angles produce exact zeros and ones.
func (r Rotation) Matrix() Matrix {
	return axis(r.Z, 2).Mul(axis(r.Y, 1).Mul(axis(r.X, 0)))
}

// IsZero reports whether all angles are zero.
func (r Rotation) IsZero() bool {
	return r.X == 0 && r.Y == 0 && r.Z == 0
}

// Mul returns m·o.
func (m Matrix) Mul(o Matrix) Matrix {
	var out Matrix
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				out[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return out
}

// String renders the matrix in the engine's nested list syntax,
// e.g. [[1.0,0.0,0.0],[0.0,1.0,0.0],[0.0,0.0,1.0]].
func (m Matrix) String() string {
	rows := make([]string, 3)
	for i, row := range m {
		cells := make([]string, 3)
		for j, v := range row {
			cells[j] = FormatFloat(v)
		}
		rows[i] = "[" + strings.Join(cells, ",") + "]"
	}
	return "[" + strings.Join(rows, ",") + "]"
}

// ParseRotation parses "x,y,z" degrees.
func ParseRotation(s string) (Rotation, error) {
	v, err := parseTriple(s)
	if err != nil {
		return Rotation{}, fmt.Errorf("invalid rotation %q: %w", s, err)
	}
	return Rotation{X: v[0], Y: v[1], Z: v[2]}, nil
}

// ParseVector parses "x,y,z".
func ParseVector(s string) ([3]float64, error) {
	v, err := parseTriple(s)
	if err != nil {
		return v, fmt.Errorf("invalid vector %q: %w", s, err)
	}
	return v, nil
}

// axis builds the rotation about axis n (0=X, 1=Y, 2=Z) by permuting the
// rows and columns of the X rotation.
func axis(deg float64, n int) Matrix {
	rad := deg * math.Pi / 180
	c, s := round6(math.Cos(rad)), round6(math.Sin(rad))
	base := Matrix{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
	perm := [3]int{}
	for i := range 3 {
		perm[i] = (i + 3 - n) % 3
	}
	var out Matrix
	for i := range 3 {
		for j := range 3 {
			out[i][j] = base[perm[i]][perm[j]]
		}
	}
	return out
}

func round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0
	}
	return r
}

// FormatFloat renders v the way the engine prints floats: shortest form, always
// with a fractional part, and never negative zero.
func FormatFloat(v float64) string {
	if v == 0 {
		v = 0
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want 3 comma-separated numbers, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
