package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Read reassembles an artifact into a dense global-field matrix.
//
// The artifact carries no header, so the caller supplies the global extents
// it was written with; a size mismatch means the artifact is truncated,
// partial, or from a different configuration, and is rejected.
func Read(path string, globalRows, globalCols int) (*mat.Dense, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	want := globalRows * globalCols * CellBytes
	if len(raw) != want {
		return nil, fmt.Errorf("snapshot %s is %d bytes, want %d for %dx%d field",
			path, len(raw), want, globalRows, globalCols)
	}
	data := make([]float64, globalRows*globalCols)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*CellBytes:]))
	}
	return mat.NewDense(globalRows, globalCols, data), nil
}
