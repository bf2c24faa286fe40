package fileio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"trialrec/internal/fileutil"
)

const fileMode = 0o644

func ensureParent(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func copyFile(c CopyFile) error {
	if err := ensureParent(c.Destination); err != nil {
		return err
	}
	if err := fileutil.CopyFileVerified(c.Source, c.Destination); err != nil {
		return fmt.Errorf("copy %s: %w", c.Source, err)
	}
	return nil
}

func writeTrials(c WriteTrials, delimiter rune) error {
	for i, row := range c.Rows {
		if len(row) != len(c.Header) {
			return fmt.Errorf("%w: row %d has %d fields, header has %d", ErrRowWidth, i+1, len(row), len(c.Header))
		}
	}
	if err := ensureParent(c.Path); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(c.Path, fileMode, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = delimiter
		if err := cw.Write(c.Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := cw.WriteAll(c.Rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		return nil
	})
}

func writeJSON(c WriteJSON) error {
	data := c.Data
	if data == nil {
		data = map[string]any{}
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	encoded = append(encoded, '\n')
	if err := ensureParent(c.Path); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(c.Path, fileMode, func(w io.Writer) error {
		_, err := w.Write(encoded)
		return err
	})
}

func writeMovementData(c WriteMovementData, precision int) error {
	if len(c.Columns) == 0 {
		return ErrNoColumns
	}
	for i, sample := range c.Samples {
		if len(sample) > len(c.Columns) {
			return fmt.Errorf("%w: frame %d has %d values, %d columns", ErrSampleWidth, i, len(sample), len(c.Columns))
		}
	}
	if precision <= 0 {
		precision = -1
	}
	if err := ensureParent(c.Path); err != nil {
		return err
	}
	offset, err := existingFrames(c.Path)
	if err != nil {
		return err
	}
	return fileutil.AppendFile(c.Path, fileMode, func(w io.Writer, fresh bool) error {
		cw := csv.NewWriter(w)
		if fresh {
			header := append([]string{"frame"}, c.Columns...)
			if err := cw.Write(header); err != nil {
				return fmt.Errorf("write movement header: %w", err)
			}
		}
		record := make([]string, len(c.Columns)+1)
		for i, sample := range c.Samples {
			frame := offset + i
			record[0] = strconv.Itoa(frame)
			for col := range c.Columns {
				if col < len(sample) {
					record[col+1] = strconv.FormatFloat(sample[col], 'f', precision, 64)
				} else {
					record[col+1] = ""
				}
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write frame %d: %w", frame, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// existingFrames counts the sample rows already in a movement file so appended
// frames continue the ordinal.
func existingFrames(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open movement file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records := 0
	for {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("read movement file %s: %w", path, err)
		}
		records++
	}
	if records == 0 {
		return 0, nil
	}
	return records - 1, nil
}
