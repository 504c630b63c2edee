// Package codes allocates sequential document codes per category key and
// keeps the history of every code issued.
package codes

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies an independent sequence counter. Two keys are equal only if
// all three parts match exactly, including case.
type Key struct {
	Division string
	Area     string
	Doc      string
}

// String returns the key parts joined by hyphens.
func (k Key) String() string {
	return k.Division + "-" + k.Area + "-" + k.Doc
}

// A Record is one allocation event. Records are never modified after they are
// created.
type Record struct {
	Key

	// ID is the zero-padded sequence number, as it is shown and stored.
	ID string

	// Seq is the numeric value of ID.
	Seq int

	// Code is the full composite code.
	Code string
}

// NewRecord creates the record for the seq-th code of the given key.
func NewRecord(key Key, seq int) Record {
	id := FormatSequence(seq)

	return Record{
		Key:  key,
		ID:   id,
		Seq:  seq,
		Code: FullCode(key, id),
	}
}

// String returns the full code.
func (r Record) String() string {
	return r.Code
}

// FormatSequence renders a sequence number with at least three digits. Larger
// numbers are not truncated.
func FormatSequence(seq int) string {
	return fmt.Sprintf("%03d", seq)
}

// FullCode joins the key parts and the sequence id with hyphens.
func FullCode(key Key, id string) string {
	return strings.Join([]string{key.Division, key.Area, key.Doc, id}, "-")
}

// ParseSequence converts a stored sequence id back to its numeric value. Only
// positive decimal numbers are accepted.
func ParseSequence(id string) (int, error) {
	seq, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, fmt.Errorf("%w: sequence %q is not a number", ErrMalformed, id)
	}

	if seq <= 0 {
		return 0, fmt.Errorf("%w: sequence %q must be positive", ErrMalformed, id)
	}

	return seq, nil
}
