// Package flatfile persists pipeline snapshots as plain files (CSV, JSON).
package flatfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"solana-surge-lab/internal/domain"
)

// ErrBadHeader is returned when a snapshot header does not match.
var ErrBadHeader = errors.New("unexpected snapshot header")

// rawHeader is the raw candle snapshot layout.
var rawHeader = []string{"token_address", "timestamp", "open", "high", "low", "close", "volume"}

// WriteRawCandles writes raw candles to path, creating parent directories.
// Values are written exactly as received so a reload reproduces the input.
func WriteRawCandles(path string, rows []*domain.RawCandle) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeRawCandles(w, rows)
	})
}

// EncodeRawCandles writes the raw snapshot CSV to w.
func EncodeRawCandles(w io.Writer, rows []*domain.RawCandle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rawHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if r == nil {
			continue
		}
		if err := cw.Write([]string{r.Address, r.Timestamp, r.Open, r.High, r.Low, r.Close, r.Volume}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRawCandles loads a raw snapshot written by WriteRawCandles.
func ReadRawCandles(path string) ([]*domain.RawCandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	rows, err := DecodeRawCandles(f)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return rows, nil
}

// DecodeRawCandles parses the raw snapshot CSV from r.
func DecodeRawCandles(r io.Reader) ([]*domain.RawCandle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(rawHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i, h := range rawHeader {
		if header[i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, header[i], h)
		}
	}

	var out []*domain.RawCandle
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &domain.RawCandle{
			Address:   rec[0],
			Timestamp: rec[1],
			Open:      rec[2],
			High:      rec[3],
			Low:       rec[4],
			Close:     rec[5],
			Volume:    rec[6],
		})
	}
	return out, nil
}

// WriteText writes a rendered document (CSV, markdown) to path.
func WriteText(path, content string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
}

// AppendText appends content to path, creating it if needed. When the file
// is new, header is written first.
func AppendText(path, header, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if isNew && header != "" {
		if _, err := io.WriteString(f, header); err != nil {
			return err
		}
	}
	_, err = io.WriteString(f, content)
	return err
}

// writeFile writes through a temp file and renames, so readers never see
// a partial snapshot.
func writeFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// WriteBytes writes binary content (e.g. a PNG) to path.
func WriteBytes(path string, data []byte) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
