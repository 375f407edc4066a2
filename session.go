// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"sync"
	"time"
)

// MethodRevokeAuthorization invalidates the current session server side.
const MethodRevokeAuthorization = "Auth.revokeAuthorization"

// Session is the end user credential owned by the auth layer.
type Session struct {
	Key     string    `json:"session_key"`
	Secret  string    `json:"secret"`
	UID     string    `json:"uid,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// SessionSource supplies the session to sign with. Nil means unsigned.
type SessionSource interface {
	Session() *Session
}

// SessionRevoker is implemented by sources that drop their session after a
// successful Auth.revokeAuthorization call.
type SessionRevoker interface {
	RevokeSession()
}

// StaticSession is a SessionSource holding a single session.
type StaticSession struct {
	mu      sync.RWMutex
	session *Session
}

func NewStaticSession(s *Session) *StaticSession {
	return &StaticSession{session: s}
}

func (s *StaticSession) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *StaticSession) SetSession(session *Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

func (s *StaticSession) RevokeSession() {
	s.SetSession(nil)
}
