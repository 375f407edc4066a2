// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"context"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func init() {
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// rawCodec carries bridge envelopes as opaque bytes over gRPC.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error)      { return Binary.Encode(v) }
func (rawCodec) Unmarshal(data []byte, v any) error { return Binary.Decode(data, v) }
func (rawCodec) Name() string                       { return "restapi-raw" }

// grpcMethod maps "Service.Method" to the "/Service/Method" form gRPC routes on.
func grpcMethod(method string) string {
	return "/" + strings.Replace(method, ".", "/", 1)
}

// bridgeMethod is the inverse of grpcMethod.
func bridgeMethod(fullMethod string) string {
	return strings.Replace(strings.TrimPrefix(fullMethod, "/"), "/", ".", 1)
}

type grpcLink struct {
	conn   *grpc.ClientConn
	ready  chan struct{}
	cancel context.CancelFunc
}

func dialGRPC(ctx context.Context, addr string, o *dialOptions) (Link, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	l := &grpcLink{
		conn:   conn,
		ready:  make(chan struct{}),
		cancel: cancel,
	}
	go l.watch(watchCtx)
	return l, nil
}

// watch closes ready the first time the channel reaches READY.
func (l *grpcLink) watch(ctx context.Context) {
	l.conn.Connect()
	for {
		s := l.conn.GetState()
		if s == connectivity.Ready {
			close(l.ready)
			return
		}
		if !l.conn.WaitForStateChange(ctx, s) {
			return
		}
	}
}

func (l *grpcLink) Ready() <-chan struct{} {
	return l.ready
}

func (l *grpcLink) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var resp []byte
	if err := l.conn.Invoke(ctx, grpcMethod(method), payload, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (l *grpcLink) Close() error {
	l.cancel()
	return l.conn.Close()
}

// grpcServer hosts bridge calls for any method through the unknown
// service handler, so no generated stubs are needed.
type grpcServer struct {
	listener net.Listener
	server   *grpc.Server
}

func listenGRPC(addr string, handler RawHandler, o *serverOptions) (BridgeServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	log := o.logger
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
			full, ok := grpc.MethodFromServerStream(stream)
			if !ok {
				return status.Error(codes.Internal, "missing method")
			}
			var req []byte
			if err := stream.RecvMsg(&req); err != nil {
				return err
			}
			resp, err := handler(stream.Context(), bridgeMethod(full), req)
			if err != nil {
				log.Debug().Err(err).Str("method", full).Msg("grpc bridge call failed")
				return status.Error(codes.Unknown, err.Error())
			}
			return stream.SendMsg(resp)
		}),
	)
	return &grpcServer{listener: listener, server: srv}, nil
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.server.Stop)
	defer stop()
	return s.server.Serve(s.listener)
}

func (s *grpcServer) Close() error {
	s.server.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}
