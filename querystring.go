// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// EncodeQuery renders params as sorted key=value pairs joined by sep.
// Nil values are dropped. With escape unset the pairs are emitted raw,
// which is the form the signature is computed over.
func EncodeQuery(params map[string]any, sep string, escape bool) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		s := formatValue(v)
		if escape {
			k, s = escapeComponent(k), escapeComponent(s)
		}
		pairs = append(pairs, k+"="+s)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, sep)
}

// DecodeQuery parses an escaped query string, keeping the first value of
// each key.
func DecodeQuery(raw string) (Params, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	p := make(Params, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// escapeComponent matches encodeURIComponent closely enough for the
// server: spaces become %20 rather than '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// truthy reports whether a parameter value is set to something non-false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0" && x != "false"
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
