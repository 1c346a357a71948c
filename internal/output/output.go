// Package output serialises records to the output file and stdout, and
// renders failures as a single JSON error object.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

// Encode renders records as a 2-space indented JSON array. Non-ASCII text
// such as "µg/m³" is written as-is and an empty input yields "[]".
func Encode(records []pollution.Record) ([]byte, error) {
	if records == nil {
		records = []pollution.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path with data. The bytes go to a temporary file in the
// same directory first, so a failed write leaves any previous file intact.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// Emit writes the encoded records to path and then the same bytes to stdout.
func Emit(path string, records []pollution.Record, stdout io.Writer) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	if err := WriteFile(path, data); err != nil {
		return err
	}
	if _, err := stdout.Write(data); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes {"error": "<message>"} as one line.
func WriteError(w io.Writer, err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	b, mErr := json.Marshal(errorBody{Error: msg})
	if mErr != nil {
		return mErr
	}
	_, wErr := w.Write(append(b, '\n'))
	return wErr
}
