package domain

import (
	"strconv"
	"strings"
)

// CellKind tags the variant held by a Cell
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
)

// String returns the kind name used in logs
func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	default:
		return "empty"
	}
}

// Cell is one raw spreadsheet value. Exactly one of Number or Text is meaningful,
// selected by Kind.
type Cell struct {
	Kind   CellKind
	Number float64
	Text   string
}

// Number builds a numeric cell
func Number(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v}
}

// Text builds a text cell. Blank text collapses to an empty cell.
func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// Empty returns the empty cell
func Empty() Cell {
	return Cell{}
}

// IsBlank reports whether the cell carries no content
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case CellNumber:
		return false
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return true
	}
}

// String renders the cell as trimmed label text. Numbers use the shortest
// representation that round-trips, so 2024 stays "2024" rather than "2024.000000".
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return strings.TrimSpace(c.Text)
	default:
		return ""
	}
}

// Grid is a rectangular-ish table of cells. Row 0 holds area labels, row 1
// holds id/account labels and every following row is data. Rows may be ragged;
// missing trailing cells read as empty.
type Grid [][]Cell

// Cell returns the cell at (row, col), or an empty cell when out of range
func (g Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return Cell{}
	}
	return g[row][col]
}

// Width returns the length of the longest row
func (g Grid) Width() int {
	width := 0
	for _, row := range g {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// TextGrid builds a grid from plain strings, treating every non-blank value as text.
// Mostly useful for fixtures.
func TextGrid(rows ...[]string) Grid {
	grid := make(Grid, len(rows))
	for i, row := range rows {
		grid[i] = make([]Cell, len(row))
		for j, value := range row {
			grid[i][j] = Text(value)
		}
	}
	return grid
}
