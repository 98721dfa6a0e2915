// Package progressio exports and imports the whole watch state as a JSON file.
package progressio

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/treefix50/streamit/internal/metrics"
	"github.com/treefix50/streamit/internal/watchstate"
)

// ErrInvalidFormat is returned when an imported file is not valid JSON.
var ErrInvalidFormat = errors.New("invalid progress file: not valid JSON")

// MaxImportSize bounds how much of an import file is read.
const MaxImportSize = 16 << 20

// Export is a ready-to-download backup of the watch state.
type Export struct {
	Filename string
	Data     []byte
	// Checksum is the hex BLAKE2b-256 of Data.
	Checksum string
}

// Counts reports what an import brought in.
type Counts struct {
	FilmsCount  int `json:"filmsCount"`
	SeriesCount int `json:"seriesCount"`
}

// Filename is the date-stamped download name for a backup taken at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("StreamIt_%s.json", now.Format("02_01_2006"))
}

// ExportState serialises a sanitised copy of the stored state as indented JSON.
func ExportState(ctx context.Context, store *watchstate.Store, now time.Time) (Export, error) {
	// Load goes through Parse, so whatever sits in storage comes out sanitised
	state := store.Load(ctx)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return Export{}, fmt.Errorf("progressio: encode export: %w", err)
	}
	data = append(data, '\n')
	sum := blake2b.Sum256(data)
	return Export{
		Filename: Filename(now),
		Data:     data,
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// Import reads a backup, sanitises it and replaces the stored state with it. The stored state
// is left untouched when r does not hold valid JSON.
func Import(ctx context.Context, store *watchstate.Store, r io.Reader) (Counts, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return Counts{}, fmt.Errorf("progressio: read import: %w", err)
	}
	if len(data) > MaxImportSize {
		metrics.Imports.WithLabelValues("invalid").Inc()
		return Counts{}, fmt.Errorf("%w: file larger than %d bytes", ErrInvalidFormat, MaxImportSize)
	}

	var top any
	if err := json.Unmarshal(data, &top); err != nil {
		metrics.Imports.WithLabelValues("invalid").Inc()
		return Counts{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	state := watchstate.Sanitize(top)
	if err := store.Save(ctx, state); err != nil {
		metrics.Imports.WithLabelValues("error").Inc()
		return Counts{}, err
	}
	metrics.Imports.WithLabelValues("ok").Inc()
	return Counts{FilmsCount: len(state.Films), SeriesCount: len(state.Series)}, nil
}
