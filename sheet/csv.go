package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/hazyhaar/entitlemate/snapshot"
)

// ShortRowPolicy decides what a row with fewer fields than the header gets
// for the missing keys.
type ShortRowPolicy string

const (
	ShortRowsNull  ShortRowPolicy = "null"  // missing keys are null
	ShortRowsEmpty ShortRowPolicy = "empty" // missing keys are ""
	ShortRowsOmit  ShortRowPolicy = "omit"  // missing keys are left out
)

// ExtraFieldPolicy decides what happens to values past the last header.
type ExtraFieldPolicy string

const (
	ExtraDrop    ExtraFieldPolicy = "drop"
	ExtraCollect ExtraFieldPolicy = "collect" // gathered into an array under ExtraKey
)

// ExtraKey holds surplus values when ExtraFields is ExtraCollect.
const ExtraKey = "_extra"

// Policy controls how ragged rows map to records.
type Policy struct {
	ShortRows   ShortRowPolicy
	ExtraFields ExtraFieldPolicy
}

// Validate rejects unknown policy values. Empty values mean the defaults.
func (p Policy) Validate() error {
	switch p.ShortRows {
	case "", ShortRowsNull, ShortRowsEmpty, ShortRowsOmit:
	default:
		return fmt.Errorf("sheet: unknown short_rows policy %q", p.ShortRows)
	}
	switch p.ExtraFields {
	case "", ExtraDrop, ExtraCollect:
	default:
		return fmt.Errorf("sheet: unknown extra_fields policy %q", p.ExtraFields)
	}
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte, p Policy) (snapshot.Snapshot, error) {
	return Decode(bytes.NewReader(data), p)
}

// Decode reads CSV from r. The first record names the fields; each later
// record becomes one object with keys in header order. When a header repeats,
// the key keeps its first position and takes the last value. Blank lines are
// skipped. An empty document yields an empty snapshot.
func Decode(r io.Reader, p Policy) (snapshot.Snapshot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return snapshot.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sheet: csv header: %w", err)
	}

	out := snapshot.Snapshot{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sheet: csv: %w", err)
		}
		rec, err := rowRecord(header, row, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func rowRecord(header, row []string, p Policy) (snapshot.Record, error) {
	fields := make([]snapshot.Field, 0, len(header)+1)
	for i, name := range header {
		if i < len(row) {
			fields = append(fields, snapshot.Field{Name: name, Value: row[i]})
			continue
		}
		switch p.ShortRows {
		case ShortRowsOmit:
		case ShortRowsEmpty:
			fields = append(fields, snapshot.Field{Name: name, Value: ""})
		default:
			fields = append(fields, snapshot.Field{Name: name, Value: nil})
		}
	}
	if len(row) > len(header) && p.ExtraFields == ExtraCollect {
		fields = append(fields, snapshot.Field{Name: ExtraKey, Value: row[len(header):]})
	}
	return snapshot.NewRecord(fields)
}
