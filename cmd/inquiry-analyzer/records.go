package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BOSEON-SEO/CSAI/internal/analysis"
	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
)

// openInput opens path, or returns stdin for "-" or "".
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// readRecords decodes a JSON array of records, or a single record object.
// Records are not validated here; the analyzer reports invalid ones per item.
func readRecords(path string, stdin io.Reader) ([]inquiry.Record, error) {
	rc, err := openInput(path, stdin)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var records []inquiry.Record
	if err := decodeOneOrMany(rc, &records); err != nil {
		return nil, fmt.Errorf("decode inquiries: %w", err)
	}
	return records, nil
}

// decodeOneOrMany decodes either a JSON array or a single object into dst.
func decodeOneOrMany[T any](r io.Reader, dst *[]T) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*dst = []T{}
		return nil
	}
	if data[0] == '{' {
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*dst = []T{one}
		return nil
	}
	return json.Unmarshal(data, dst)
}

// itemOutput is the JSON shape of one batch item.
type itemOutput struct {
	InquiryID string           `json:"inquiry_id"`
	Result    *analysis.Result `json:"result,omitempty"`
	Error     *errorOutput     `json:"error,omitempty"`
}

type errorOutput struct {
	Kind    analysis.Kind  `json:"kind"`
	Stage   analysis.Stage `json:"stage"`
	Message string         `json:"message"`
}

// writeItems prints batch results in input order.
func writeItems(w io.Writer, items []analysis.BatchItem, asJSON bool) error {
	if asJSON {
		out := make([]itemOutput, len(items))
		for i, item := range items {
			out[i] = itemOutput{InquiryID: item.InquiryID, Result: item.Result}
			if item.Err != nil {
				out[i].Error = &errorOutput{
					Kind:    item.Err.Kind,
					Stage:   item.Err.Stage,
					Message: item.Err.Error(),
				}
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, item := range items {
		if item.Err != nil {
			if _, err := fmt.Fprintf(w, "✗ %s: %v\n", item.InquiryID, item.Err); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(w, analysis.FormatResult(item.Result)); err != nil {
			return err
		}
	}
	return nil
}
