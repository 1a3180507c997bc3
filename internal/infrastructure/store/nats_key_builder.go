// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// Entity key prefixes
const (
	KeyPrefixEvent   = "event"
	KeyPrefixCamera  = "camera"
	KeyPrefixMapping = "mapping"
	KeyPrefixQoS     = "qos"
)

// KeyBuilder provides utilities for building consistent NATS KV keys.
// All stored entities use date-scoped keys so reports can list one day's
// records by prefix.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// DateScopedKey builds a key scoped to a date (e.g. "event/2026-08-28/uid-123").
func (kb *KeyBuilder) DateScopedKey(entityType, date, uid string) string {
	key := fmt.Sprintf("%s/%s/%s", entityType, date, uid)
	return kb.applyPrefix(key, false)
}

// DateScopedKeyEncoded builds an encoded date-scoped key. Meeting UUIDs and
// similar tokens can contain characters NATS KV keys do not allow, so the
// encoded form is what actually hits the store.
func (kb *KeyBuilder) DateScopedKeyEncoded(entityType, date, uid string) string {
	key := fmt.Sprintf("%s/%s/%s", entityType, date, uid)
	return kb.applyPrefix(key, true)
}

// DatePrefix builds the decoded-key prefix matching every entity of one date.
func (kb *KeyBuilder) DatePrefix(entityType, date string) string {
	key := fmt.Sprintf("%s/%s/", entityType, date)
	return kb.applyPrefix(key, false)
}

// CompoundKey builds a compound key from multiple parts
func (kb *KeyBuilder) CompoundKey(parts ...string) string {
	key := strings.Join(parts, "/")
	return kb.applyPrefix(key, false)
}

// applyPrefix adds the builder's prefix if one is set
func (kb *KeyBuilder) applyPrefix(key string, encode bool) string {
	var fullKey string
	if kb.prefix == "" {
		fullKey = key
	} else {
		fullKey = fmt.Sprintf("%s/%s", kb.prefix, key)
	}

	if encode {
		encodedKey, err := kb.EncodeKey(fullKey)
		if err != nil {
			slog.Error("error encoding key", logging.ErrKey, err, "key", fullKey)
			return fullKey
		}
		return encodedKey
	}
	return fullKey
}

// EncodeKey encodes a key for NATS KV store.
// From https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	res := []string{}
	for _, part := range strings.Split(strings.TrimPrefix(key, "/"), "/") {
		if part == ">" || part == "*" {
			res = append(res, part)
			continue
		}

		dst := make([]byte, base64.StdEncoding.EncodedLen(len(part)))
		base64.StdEncoding.Encode(dst, []byte(part))
		res = append(res, string(dst))
	}

	if len(res) == 0 {
		return "", nats.ErrInvalidKey
	}

	return strings.Join(res, "."), nil
}

// DecodeKey decodes a key for NATS KV store.
// From https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	res := []string{}
	for _, part := range strings.Split(key, ".") {
		k, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return "", err
		}

		res = append(res, string(k))
	}

	if len(res) == 0 {
		return "", nats.ErrInvalidKey
	}

	return fmt.Sprintf("/%s", strings.Join(res, "/")), nil
}
