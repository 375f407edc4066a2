// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotContainer is returned when a dotted path crosses a non-map value.
var ErrNotContainer = errors.New("restapi: path segment is not a container")

// Params is the flat parameter bag sent to restserver.php.
type Params map[string]any

// Clone returns a shallow copy so signing never touches the caller's map.
func (p Params) Clone() Params {
	return Copy(make(Params, len(p)), p, true)
}

// Copy copies every key of source into target. Keys already present on
// target are kept unless overwrite is set. A nil target is allocated.
func Copy(target, source map[string]any, overwrite bool) map[string]any {
	if target == nil {
		target = make(map[string]any, len(source))
	}
	for k, v := range source {
		if _, ok := target[k]; ok && !overwrite {
			continue
		}
		target[k] = v
	}
	return target
}

// Tree is a nested table of settings addressed by dotted paths.
type Tree map[string]any

// Copy resolves path under t, creating empty tables for missing segments,
// and merges source into the resolved table. Empty segments are skipped so
// "" addresses t itself.
func (t Tree) Copy(path string, source map[string]any, overwrite bool) (map[string]any, error) {
	node, err := t.resolve(path, true)
	if err != nil {
		return nil, err
	}
	return Copy(node, source, overwrite), nil
}

// Lookup resolves path without creating anything.
func (t Tree) Lookup(path string) (map[string]any, bool) {
	node, err := t.resolve(path, false)
	if err != nil || node == nil {
		return nil, false
	}
	return node, true
}

func (t Tree) resolve(path string, create bool) (map[string]any, error) {
	node := map[string]any(t)
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		v, ok := node[part]
		if !ok {
			if !create {
				return nil, nil
			}
			next := make(map[string]any)
			node[part] = next
			node = next
			continue
		}
		switch next := v.(type) {
		case map[string]any:
			node = next
		case Tree:
			node = next
		case Params:
			node = next
		default:
			return nil, fmt.Errorf("%w: %q in %q", ErrNotContainer, part, path)
		}
	}
	return node, nil
}

// cloneTree copies src with every nested table copied too, so writes to
// the result never reach src.
func cloneTree(src map[string]any) Tree {
	t := make(Tree, len(src))
	for k, v := range src {
		switch x := v.(type) {
		case map[string]any:
			t[k] = map[string]any(cloneTree(x))
		case Tree:
			t[k] = map[string]any(cloneTree(x))
		case Params:
			t[k] = map[string]any(cloneTree(x))
		default:
			t[k] = v
		}
	}
	return t
}
