package docstore

import (
	"cmp"
	"fmt"
	"strconv"
)

// KeyCodec converts a table's key type to and from the primitive an
// internal/xlsx cell can hold. Most tables key on either an int64 (gateway
// identifiers) or a string (free-form names); Int64Key and StringKey cover
// both without requiring every plugin to write its own.
type KeyCodec[K cmp.Ordered] struct {
	Decode func(cell any) (K, error)
	Encode func(key K) any
}

// Int64Key is the codec for tables keyed by a gateway identifier.
var Int64Key = KeyCodec[int64]{
	Decode: func(cell any) (int64, error) {
		switch v := cell.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("coerce %q to int64 key: %w", v, err)
			}
			return n, nil
		default:
			return 0, fmt.Errorf("cannot coerce %T to int64 key", cell)
		}
	},
	Encode: func(k int64) any { return k },
}

// StringKey is the codec for tables keyed by a free-form name.
var StringKey = KeyCodec[string]{
	Decode: func(cell any) (string, error) {
		switch v := cell.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		default:
			return "", fmt.Errorf("cannot coerce %T to string key", cell)
		}
	},
	Encode: func(k string) any { return k },
}
