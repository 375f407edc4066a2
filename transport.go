// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"context"
	"sort"
	"sync"
)

// Bridge link transport types
const (
	TransportZAP  = "zap"  // Length-prefixed frames over TCP, default
	TransportGRPC = "grpc" // gRPC with a raw bytes codec
)

// DefaultTransport is the default bridge link transport (ZAP)
const DefaultTransport = TransportZAP

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Link, error)
type listenFunc func(addr string, handler RawHandler, o *serverOptions) (BridgeServer, error)

type transportEntry struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportEntry{
		TransportZAP: {dialZAP, listenZAP},
	}
)

// registerTransport registers a new link transport
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transportEntry{dial, listen}
}

func lookupTransport(name string) (transportEntry, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	e, ok := transports[name]
	return e, ok
}

// AvailableTransports returns the registered link transports, sorted
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
