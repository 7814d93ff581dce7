package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a file record. IDs are handed out by a Scanner and are never
// reused by that Scanner, even across rescans.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses the decimal form produced by String.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return ID(n), nil
}

// UnmarshalJSON accepts both 42 and "42".
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid file id %s", b)
	}
	*id = ID(n)
	return nil
}
