package scanstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Export writes the scans of userID (all users when empty) to w as
// zstd-compressed JSON lines, newest first. It returns the number written.
func Export(ctx context.Context, store Store, userID string, w io.Writer) (int, error) {
	scans, err := store.List(ctx, userID)
	if err != nil {
		return 0, err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("creating zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	for i := range scans {
		if err := enc.Encode(&scans[i]); err != nil {
			zw.Close() //nolint:errcheck
			return i, fmt.Errorf("encoding scan %s: %w", scans[i].ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return len(scans), fmt.Errorf("flushing export: %w", err)
	}
	return len(scans), nil
}

// ReadExport decodes an export written by Export.
func ReadExport(r io.Reader) ([]Scan, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	var scans []Scan
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var s Scan
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("decoding export line %d: %w", len(scans)+1, err)
		}
		scans = append(scans, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return scans, nil
}
