// Package grid computes the domain decomposition: how a global M×N field is
// split across a group of ranks arranged as a non-periodic 2D Cartesian
// topology, and which ranks are logical neighbors.
//
// The decomposition is fixed for the lifetime of a run. Every rank derives
// the same Topology from the rank count alone, so no coordination is needed
// to agree on it.
package grid

import "fmt"

// Direction identifies one of the four logical neighbor directions in the
// process topology. Up/Down move along the row axis, Left/Right along the
// column axis.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists all four directions in a fixed evaluation order.
// Exchange and boundary code iterate in this order for determinism.
var Directions = [4]Direction{Up, Down, Left, Right}

// Opposite returns the reverse direction. A message sent Up arrives at the
// receiver's Down edge.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// NoNeighbor is the sentinel rank for a direction that falls off the global
// domain edge. The topology is non-periodic: there is no wraparound.
const NoNeighbor = -1

// Topology is a non-periodic 2D Cartesian arrangement of ranks.
//
// Ranks are laid out row-major: rank = row*PCols + col. The arrangement is
// identical on every rank and immutable after construction.
//
// INVARIANT: PRows*PCols == Ranks.
type Topology struct {
	Ranks int // total rank count
	PRows int // rank count along the row axis
	PCols int // rank count along the column axis
}

// Dims factors p into a 2D rank grid that is as close to square as
// possible, balancing the communication surface of the decomposition.
// The larger factor is placed on the row axis, mirroring the non-increasing
// order MPI_Dims_create produces.
func Dims(p int) (pr, pc int) {
	pc = 1
	for d := 2; d*d <= p; d++ {
		if p%d == 0 {
			pc = d
		}
	}
	return p / pc, pc
}

// NewTopology builds the Cartesian topology for p ranks.
func NewTopology(p int) (*Topology, error) {
	if p < 1 {
		return nil, fmt.Errorf("topology requires at least one rank, got %d", p)
	}
	pr, pc := Dims(p)
	return &Topology{Ranks: p, PRows: pr, PCols: pc}, nil
}

// Coord returns the (row, col) position of rank in the topology.
func (t *Topology) Coord(rank int) (row, col int) {
	return rank / t.PCols, rank % t.PCols
}

// Rank returns the rank at position (row, col).
func (t *Topology) Rank(row, col int) int {
	return row*t.PCols + col
}

// Neighbor returns the rank adjacent to rank in direction d, or NoNeighbor
// when that direction leaves the global domain.
func (t *Topology) Neighbor(rank int, d Direction) int {
	row, col := t.Coord(rank)
	switch d {
	case Up:
		row--
	case Down:
		row++
	case Left:
		col--
	case Right:
		col++
	}
	if row < 0 || row >= t.PRows || col < 0 || col >= t.PCols {
		return NoNeighbor
	}
	return t.Rank(row, col)
}

// Neighbors returns all four neighbor ranks of rank, indexed by Direction.
func (t *Topology) Neighbors(rank int) [4]int {
	var n [4]int
	for _, d := range Directions {
		n[d] = t.Neighbor(rank, d)
	}
	return n
}
