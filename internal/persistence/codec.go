package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

// encodeValue serializes v using encoding/gob. A nil pointer encodes to nil
// so backends can store it as NULL.
func encodeValue[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// decodeValue is the inverse of encodeValue. Empty input yields nil.
func decodeValue[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v := new(T)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return nil, fmt.Errorf("gob decode %T: %w", v, err)
	}
	return v, nil
}

// unixNanos stores the zero time as 0 so it survives a round trip.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
