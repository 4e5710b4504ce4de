/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package gwauth guards the network (SSE) transport with a single
// bearer token. The stdio transport needs no auth — it inherits the
// process's own trust boundary — so this package is only consulted
// when --transport names a host/port. Adapted from
// internal/controlplane/auth/keys.go's APIKey/KeyStore bcrypt pattern,
// collapsed from a multi-key SQLite store down to the one shared
// secret a single-tenant gateway process needs.
package gwauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned by Validate when the presented token does
// not match the stored hash.
var ErrInvalidToken = errors.New("invalid token")

// TokenStore holds the bcrypt hash of the single bearer token the
// network transport accepts. Safe for concurrent use — the hash is
// immutable once set.
type TokenStore struct {
	hash string
}

// GenerateToken creates a new random token, hashes it, and returns the
// plaintext once — the caller (cmd/dbgateway) is responsible for
// surfacing it to the operator exactly once, matching KeyStore.Create's
// "return the plaintext once" contract.
func GenerateToken() (*TokenStore, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	plain := "dbgw_" + hex.EncodeToString(raw)
	return newTokenStore(plain)
}

// NewTokenStoreFromPlaintext hashes an operator-supplied token (e.g.
// from DBGATEWAY_AUTH_TOKEN), so a restart does not rotate it.
func NewTokenStoreFromPlaintext(plain string) (*TokenStore, error) {
	ts, _, err := newTokenStore(plain)
	return ts, err
}

func newTokenStore(plain string) (*TokenStore, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	return &TokenStore{hash: string(hash)}, plain, nil
}

// Validate reports whether plain matches the stored token.
func (ts *TokenStore) Validate(plain string) error {
	if ts == nil {
		return ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ts.hash), []byte(plain)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// Middleware wraps next, requiring a matching "Authorization: Bearer
// <token>" header on every request. A nil TokenStore disables the
// check entirely.
func (ts *TokenStore) Middleware(next http.Handler) http.Handler {
	if ts == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || ts.Validate(token) != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
