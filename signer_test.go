// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSignWithoutSession(t *testing.T) {
	s := NewSigner("key")
	s.Now = fixedClock(1234)

	p := Params{"method": "users.getInfo"}
	got := s.Sign(p, nil)

	assert.Equal(t, Params{
		"method":  "users.getInfo",
		"api_key": "key",
		"call_id": int64(1234),
		"format":  "json",
		"v":       "1.0",
	}, got)
	// mutated in place
	assert.Equal(t, "key", p["api_key"])
	assert.NotContains(t, got, ParamSig)
	assert.NotContains(t, got, ParamSessionKey)
}

func TestSignWithSession(t *testing.T) {
	s := NewSigner("key")
	s.Now = fixedClock(1234)
	sess := &Session{Key: "sk", Secret: "secret"}

	got := s.Sign(Params{"method": "users.getInfo"}, sess)

	assert.Equal(t, "sk", got[ParamSessionKey])
	assert.Equal(t, 1, got[ParamSessionSig])

	base := "api_key=keycall_id=1234format=jsonmethod=users.getInfosession_key=skss=1v=1.0"
	assert.Equal(t, MD5Hex(base+"secret"), got[ParamSig])
}

func TestSignKeepsCallerFields(t *testing.T) {
	s := NewSigner("key")
	got := s.Sign(Params{"format": "xml", "v": "2.0"}, nil)
	assert.Equal(t, "xml", got["format"])
	assert.Equal(t, "2.0", got["v"])
}

func TestSignRecomputesSignature(t *testing.T) {
	s := NewSigner("key")
	s.Now = fixedClock(1)
	sess := &Session{Key: "sk", Secret: "secret"}

	fresh := s.Sign(Params{"a": "b"}, sess)
	stale := s.Sign(Params{"a": "b", "sig": "bogus"}, sess)
	assert.Equal(t, fresh[ParamSig], stale[ParamSig])
}

func TestSignClonesAreIdentical(t *testing.T) {
	s := NewSigner("key")
	s.Now = fixedClock(99)
	sess := &Session{Key: "sk", Secret: "secret"}
	base := Params{"method": "fql.query", "query": "SELECT uid FROM user"}

	a := s.Sign(base.Clone(), sess)
	b := s.Sign(base.Clone(), sess)

	assert.Equal(t, a, b)
	assert.Len(t, base, 2)
}

func TestSignClonesDifferOnlyInTimestamp(t *testing.T) {
	s := NewSigner("key")
	base := Params{"method": "fql.query"}

	s.Now = fixedClock(1)
	a := s.Sign(base.Clone(), nil)
	s.Now = fixedClock(2)
	b := s.Sign(base.Clone(), nil)

	require.NotEqual(t, a[ParamCallID], b[ParamCallID])
	delete(a, ParamCallID)
	delete(b, ParamCallID)
	assert.Equal(t, a, b)
}

func TestSignCustomHash(t *testing.T) {
	s := NewSigner("key")
	s.Hash = func(string) string { return "h" }
	got := s.Sign(Params{}, &Session{Key: "sk", Secret: "x"})
	assert.Equal(t, "h", got[ParamSig])
}
