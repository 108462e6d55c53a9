package swrcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one logical query: a resource plus its parameter set.
type Key string

func (k Key) String() string { return string(k) }

// Hash returns a short, stable digest of k, for logs that must not carry user input.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

// Params is a flat parameter set. Values must be strings, bools, integers or
// floats; a nil value is treated exactly like an omitted parameter.
type Params map[string]any

// BuildKey serializes resource and params into a canonical key:
//
//	events:{filter:"public",location:"",page:1,pageSize:6,search:""}
//
// Parameters are sorted by name, so call-site field order never matters.
// Strings are quoted, so "1" and 1 never collide. Names that are not plain
// identifiers are quoted too, so {"a:1,b": 2} cannot pass for {a: 1, b: 2}.
// It panics on an empty resource or a non-primitive value.
func BuildKey(resource string, params Params) Key {
	if resource == "" {
		panic("swrcache: BuildKey with empty resource")
	}
	names := make([]string, 0, len(params))
	for name, v := range params {
		if v == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.Grow(len(resource) + 2 + len(names)*16)
	b.WriteString(resource)
	b.WriteString(":{")
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeName(name))
		b.WriteByte(':')
		b.WriteString(encodeParam(name, params[name]))
	}
	b.WriteByte('}')
	return Key(b.String())
}

// encodeName writes identifier names bare and quotes everything else.
func encodeName(name string) string {
	if name == "" {
		return `""`
	}
	for i, r := range name {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return strconv.Quote(name)
		}
	}
	return name
}

func encodeParam(name string, v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	default:
		panic(fmt.Sprintf("swrcache: param %q has non-primitive type %T", name, v))
	}
}

// formatFloat keeps integral floats in integer form so 6 and 6.0 share a key.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
