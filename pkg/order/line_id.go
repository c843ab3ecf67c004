package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLineID indicates a line identifier could not be parsed.
var ErrInvalidLineID = errors.New("invalid line id")

// LineID identifies one line item by order name and positional index.
// The index is the position within the order's line-item list, so a reorder
// of that list upstream changes identity.
type LineID struct {
	OrderName string
	Index     int
}

// String renders the id as "{orderName}-{index}".
func (id LineID) String() string {
	return fmt.Sprintf("%s-%d", id.OrderName, id.Index)
}

// ParseLineID parses the "{orderName}-{index}" form. The split happens at the
// last '-', so order names that contain '-' round-trip.
func ParseLineID(s string) (LineID, error) {
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return LineID{}, fmt.Errorf("%w: %q", ErrInvalidLineID, s)
	}
	idx, err := strconv.Atoi(s[i+1:])
	if err != nil || idx < 0 {
		return LineID{}, fmt.Errorf("%w: %q", ErrInvalidLineID, s)
	}
	return LineID{OrderName: s[:i], Index: idx}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id LineID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *LineID) UnmarshalText(b []byte) error {
	parsed, err := ParseLineID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
