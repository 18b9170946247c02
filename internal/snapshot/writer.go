// Package snapshot produces and reads the checkpoint artifacts: periodic
// dumps of the assembled global temperature field.
//
// One artifact per emitted snapshot, named by zero-padded snapshot index
// (NNNNN.bin) under the run's output directory. Contents are the M×N global
// field as row-major little-endian float64, no header, no per-rank
// separation. Every rank writes its halo-stripped interior block at the
// byte offset its decomposition offsets dictate; offsets never overlap, so
// the writes need no ordering between ranks. The artifact is complete only
// after the whole group has passed a barrier and rank 0 has sealed it; an
// artifact from a run that aborted mid-write is not a valid checkpoint.
package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/Claxl/Parallel-Computing2023/internal/field"
	"github.com/Claxl/Parallel-Computing2023/internal/grid"
)

// CellBytes is the on-disk size of one cell: an IEEE-754 double.
const CellBytes = 8

// Writer coordinates the collective production of snapshot artifacts for
// one run. It is shared by every rank; methods are safe for concurrent use.
type Writer struct {
	dir  string
	rows int // global M
	cols int // global N

	mu   sync.Mutex
	open map[int]*os.File // snapshot index -> shared handle
}

// NewWriter prepares the output directory for a run's artifacts.
func NewWriter(dir string, globalRows, globalCols int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{
		dir:  dir,
		rows: globalRows,
		cols: globalCols,
		open: make(map[int]*os.File),
	}, nil
}

// Filename returns the artifact name for a snapshot index.
func Filename(index int) string {
	return fmt.Sprintf("%05d.bin", index)
}

// Filename returns the artifact path for a snapshot index.
func (w *Writer) Filename(index int) string {
	return filepath.Join(w.dir, Filename(index))
}

// file returns the shared handle for a snapshot index, creating the
// artifact on first use. Whichever rank arrives first creates it; the
// others reuse the same handle, so there is exactly one open file per
// artifact regardless of rank count.
func (w *Writer) file(index int) (*os.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.open[index]; ok {
		return f, nil
	}
	f, err := os.OpenFile(w.Filename(index), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %05d: %w", index, err)
	}
	w.open[index] = f
	return f, nil
}

// WriteBlock writes one rank's interior block into the artifact for the
// given snapshot index, at the global offsets of its subgrid. The halo ring
// is stripped: only interior rows 1..Rows and columns 1..Cols are written.
func (w *Writer) WriteBlock(index int, sub grid.Subgrid, b *field.Buffer) error {
	f, err := w.file(index)
	if err != nil {
		return err
	}
	row := make([]byte, sub.Cols*CellBytes)
	for r := 1; r <= sub.Rows; r++ {
		for c := 1; c <= sub.Cols; c++ {
			binary.LittleEndian.PutUint64(row[(c-1)*CellBytes:], math.Float64bits(b.At(r, c)))
		}
		off := int64(((sub.OffsetRow+r-1)*w.cols + sub.OffsetCol) * CellBytes)
		if _, err := f.WriteAt(row, off); err != nil {
			return fmt.Errorf("write snapshot %05d row %d: %w", index, sub.OffsetRow+r-1, err)
		}
	}
	return nil
}

// Seal finishes an artifact after every rank's block has landed (the caller
// must have passed a barrier first). It syncs and closes the shared handle
// and returns the artifact's checksum and size for the manifest.
func (w *Writer) Seal(index int) (sum string, size int64, err error) {
	w.mu.Lock()
	f := w.open[index]
	delete(w.open, index)
	w.mu.Unlock()
	if f == nil {
		return "", 0, fmt.Errorf("snapshot %05d was never written", index)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return "", 0, fmt.Errorf("sync snapshot %05d: %w", index, err)
	}
	h := sha256.New()
	ro, err := os.Open(w.Filename(index))
	if err != nil {
		return "", 0, fmt.Errorf("seal snapshot %05d: %w", index, err)
	}
	defer ro.Close()
	size, err = io.Copy(h, ro)
	if err != nil {
		return "", 0, fmt.Errorf("checksum snapshot %05d: %w", index, err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
