package storage

import (
	"fmt"

	"github.com/gabbenick/artigo-deeplake/lake"
)

// Options holds engine settings, typically the [store] table of the TOML
// configuration plus the dataset compression.
type Options map[string]interface{}

// CompressionKey is the option naming the value compression of new cells.
const CompressionKey = "compression"

// GetBool returns a boolean setting and whether it was present.
func (o Options) GetBool(key string) (value, found bool, err error) {
	v, found := o[key]
	if !found {
		return false, false, nil
	}
	value, ok := v.(bool)
	if !ok {
		return false, true, fmt.Errorf("%q setting must be a bool (%v)", key, v)
	}
	return value, true, nil
}

// GetInt returns an integer setting and whether it was present.
func (o Options) GetInt(key string) (value int64, found bool, err error) {
	v, found := o[key]
	if !found {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%q setting must be an integer (%v)", key, v)
	}
}

// GetString returns a string setting and whether it was present.
func (o Options) GetString(key string) (value string, found bool, err error) {
	v, found := o[key]
	if !found {
		return "", false, nil
	}
	value, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("%q setting must be a string (%v)", key, v)
	}
	return value, true, nil
}

// Compression returns the configured value compression, defaulting to none.
func (o Options) Compression() (lake.Compression, error) {
	s, _, err := o.GetString(CompressionKey)
	if err != nil {
		return lake.Uncompressed, err
	}
	return lake.ParseCompression(s)
}
