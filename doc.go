// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package restapi signs and dispatches calls to the restserver.php REST
// endpoint over whichever transport the host supports.
//
// # Transport Selection
//
// Three transports deliver a signed parameter bag:
//
//	http    native HTTP client, used exclusively when configured
//	script  JSONP script load, GET only, at most 2000 bytes of URL
//	bridge  plugin bridge host performing the request on our behalf
//
// When no native HTTP client is configured the script transport is tried
// first. If it fails before sending (payload too large, no document) the
// call moves to the bridge; without a bridge the call fails with
// ErrTransportUnavailable.
//
// # Usage
//
//	cfg := restapi.DefaultConfig()
//	cfg.APIKey = apiKey
//	cfg.ServerHTTP = true
//
//	client, err := restapi.New(cfg, restapi.WithSession(restapi.NewStaticSession(sess)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Call(ctx, restapi.Params{
//	    "method": "fql.query",
//	    "query":  "SELECT name FROM profile WHERE id=4",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if resp.Timeout {
//	    // soft failure, retry later
//	}
//	if err := resp.Err(); err != nil {
//	    // restserver error object
//	}
//
// # Bridge
//
// The bridge host is a separate process (see cmd/xdbridge) reached over a
// link transport. ZAP is the default link; gRPC is also registered:
//
//	bridge, err := restapi.DialBridge(ctx, "127.0.0.1:9400",
//	    restapi.WithTransport(restapi.TransportGRPC))
//
// Calls sent before the host announces readiness wait for it.
//
// # Architecture
//
//   - client.go: Client, options and the transport selection policy
//   - signer.go: request signing
//   - params.go: Params, Copy and the dotted-path Tree
//   - script.go: JSONP transport and HTTPDocument
//   - http.go: server-side HTTP transport
//   - bridge.go: Bridge client, BridgeTransport and the XdComm host handler
//   - transport.go, dial.go: link transport registry and dial/listen
//   - zap.go, grpc.go: link transports
package restapi
