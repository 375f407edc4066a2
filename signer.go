// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

const (
	DefaultFormat  = "json"
	DefaultVersion = "1.0"
)

// Parameter names stamped onto every request.
const (
	ParamAPIKey     = "api_key"
	ParamCallID     = "call_id"
	ParamFormat     = "format"
	ParamVersion    = "v"
	ParamSessionKey = "session_key"
	ParamSessionSig = "ss"
	ParamSig        = "sig"
	ParamCallback   = "callback"
	ParamMethod     = "method"
	ParamMultipart  = "multipart"
)

// HashFunc computes the hex signature over the raw query string plus secret.
type HashFunc func(string) string

// MD5Hex is the signature hash restserver.php verifies.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Signer stamps the fixed request fields and, when a session is present,
// the session key and signature.
type Signer struct {
	APIKey  string
	Format  string
	Version string
	Hash    HashFunc
	Now     func() time.Time
}

// NewSigner returns a signer with the default format, version and hash.
func NewSigner(apiKey string) *Signer {
	return &Signer{
		APIKey:  apiKey,
		Format:  DefaultFormat,
		Version: DefaultVersion,
		Hash:    MD5Hex,
		Now:     time.Now,
	}
}

// Sign mutates params in place and returns the same map. Fields the caller
// already set are kept; sig is always recomputed.
func (s *Signer) Sign(params Params, session *Session) Params {
	if params == nil {
		params = make(Params)
	}
	Copy(params, map[string]any{
		ParamAPIKey:  s.APIKey,
		ParamCallID:  s.now().UnixMilli(),
		ParamFormat:  orDefault(s.Format, DefaultFormat),
		ParamVersion: orDefault(s.Version, DefaultVersion),
	}, false)

	if session == nil {
		return params
	}
	Copy(params, map[string]any{
		ParamSessionKey: session.Key,
		ParamSessionSig: 1,
	}, false)

	delete(params, ParamSig)
	hash := s.Hash
	if hash == nil {
		hash = MD5Hex
	}
	params[ParamSig] = hash(EncodeQuery(params, "", false) + session.Secret)
	return params
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
