// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrZAPClosed      = errors.New("zap: connection closed")
	ErrZAPInvalidResp = errors.New("zap: invalid response")
)

// MessageType identifies ZAP message types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
	MsgReady    MessageType = 0x05
)

const (
	zapMaxFrame     = 64 * 1024 * 1024 // 64MB max
	zapWriteTimeout = 30 * time.Second
)

// ZAPConn is the client side of a ZAP bridge link
type ZAPConn struct {
	conn      net.Conn
	writeMu   sync.Mutex
	pending   sync.Map // requestID -> chan *ZAPResponse
	nextID    atomic.Uint32
	closed    atomic.Bool
	readDone  chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	log       zerolog.Logger
}

// ZAPResponse holds a response from a ZAP call
type ZAPResponse struct {
	Data []byte
	Err  error
}

func dialZAP(ctx context.Context, addr string, o *dialOptions) (Link, error) {
	return ZAPDial(ctx, addr, o.logger)
}

// ZAPDial connects to a ZAP bridge host
func ZAPDial(ctx context.Context, addr string, log zerolog.Logger) (*ZAPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("zap dial: %w", err)
	}

	zc := &ZAPConn{
		conn:     conn,
		readDone: make(chan struct{}),
		ready:    make(chan struct{}),
		log:      log,
	}
	go zc.readLoop()
	return zc, nil
}

// Ready is closed when the host's ready frame arrives
func (z *ZAPConn) Ready() <-chan struct{} {
	return z.ready
}

// CallRaw makes a ZAP RPC call
func (z *ZAPConn) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if z.closed.Load() {
		return nil, ErrZAPClosed
	}

	requestID := z.nextID.Add(1)
	respCh := make(chan *ZAPResponse, 1)
	z.pending.Store(requestID, respCh)
	defer z.pending.Delete(requestID)

	// Encode: [4 len][1 type][4 reqID][2 methodLen][method][payload]
	methodBytes := []byte(method)
	msgLen := 1 + 4 + 2 + len(methodBytes) + len(payload)

	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(MsgRequest)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(methodBytes)))
	copy(buf[11:], methodBytes)
	copy(buf[11+len(methodBytes):], payload)

	z.writeMu.Lock()
	_, err := z.conn.Write(buf)
	z.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("zap write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Data, nil
	case <-z.readDone:
		return nil, ErrZAPClosed
	}
}

// Pending reports the number of calls waiting for a response
func (z *ZAPConn) Pending() int {
	n := 0
	z.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (z *ZAPConn) readLoop() {
	defer close(z.readDone)

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(z.conn, header); err != nil {
			if !z.closed.Load() {
				z.log.Debug().Err(err).Msg("zap read loop stopped")
			}
			return
		}

		msgLen := binary.BigEndian.Uint32(header)
		if msgLen == 0 || msgLen > zapMaxFrame {
			z.log.Warn().Uint32("len", msgLen).Msg("zap frame rejected")
			return
		}

		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(z.conn, msg); err != nil {
			return
		}

		msgType := MessageType(msg[0])
		if msgType == MsgReady {
			z.readyOnce.Do(func() { close(z.ready) })
			continue
		}
		if len(msg) < 5 {
			continue
		}

		requestID := binary.BigEndian.Uint32(msg[1:5])
		payload := msg[5:]

		ch, ok := z.pending.Load(requestID)
		if !ok {
			continue
		}
		respCh := ch.(chan *ZAPResponse)
		switch msgType {
		case MsgResponse:
			respCh <- &ZAPResponse{Data: payload}
		case MsgError:
			respCh <- &ZAPResponse{Err: errors.New(string(payload))}
		default:
			respCh <- &ZAPResponse{Err: ErrZAPInvalidResp}
		}
	}
}

// Close closes the connection
func (z *ZAPConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	return z.conn.Close()
}

// ZAPServer is the host side of ZAP bridge links
type ZAPServer struct {
	listener net.Listener
	handler  RawHandler
	conns    sync.Map
	closed   atomic.Bool
	log      zerolog.Logger
}

// zapHostConn serializes frames written to one link
type zapHostConn struct {
	net.Conn
	writeMu sync.Mutex
}

func (c *zapHostConn) writeFrame(buf []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.SetWriteDeadline(time.Now().Add(zapWriteTimeout)); err != nil {
		return err
	}
	_, err := c.Write(buf)
	return err
}

func listenZAP(addr string, handler RawHandler, o *serverOptions) (BridgeServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewZAPServer(listener, handler, o.logger), nil
}

// NewZAPServer creates a new ZAP bridge host
func NewZAPServer(listener net.Listener, handler RawHandler, log zerolog.Logger) *ZAPServer {
	return &ZAPServer{
		listener: listener,
		handler:  handler,
		log:      log,
	}
}

// Serve starts serving links
func (s *ZAPServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("zap accept: %w", err)
		}
		go s.handleConn(ctx, &zapHostConn{Conn: conn})
	}
}

func (s *ZAPServer) handleConn(ctx context.Context, conn *zapHostConn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	// Announce readiness before reading requests
	ready := make([]byte, 5)
	binary.BigEndian.PutUint32(ready[0:4], 1)
	ready[4] = byte(MsgReady)
	if err := conn.writeFrame(ready); err != nil {
		s.log.Warn().Err(err).Msg("zap ready frame failed")
		return
	}

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		msgLen := binary.BigEndian.Uint32(header)
		if msgLen == 0 || msgLen > zapMaxFrame {
			return
		}

		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, msg); err != nil {
			return
		}

		if MessageType(msg[0]) != MsgRequest || len(msg) < 7 {
			continue
		}
		requestID := binary.BigEndian.Uint32(msg[1:5])
		methodLen := binary.BigEndian.Uint16(msg[5:7])
		if len(msg) < 7+int(methodLen) {
			continue
		}
		method := string(msg[7 : 7+methodLen])
		payload := msg[7+methodLen:]

		go func() {
			respData, err := s.handler(ctx, method, payload)
			s.sendResponse(conn, requestID, respData, err)
		}()
	}
}

func (s *ZAPServer) sendResponse(conn *zapHostConn, requestID uint32, data []byte, err error) {
	var msgType MessageType
	var payload []byte
	if err != nil {
		msgType = MsgError
		payload = []byte(err.Error())
	} else {
		msgType = MsgResponse
		payload = data
	}

	msgLen := 1 + 4 + len(payload)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(msgType)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	copy(buf[9:], payload)

	if err := conn.writeFrame(buf); err != nil {
		s.log.Debug().Err(err).Uint32("request", requestID).Msg("zap response dropped")
	}
}

// Close closes the server
func (s *ZAPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ interface{}) bool {
		key.(*zapHostConn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *ZAPServer) Addr() string {
	return s.listener.Addr().String()
}
