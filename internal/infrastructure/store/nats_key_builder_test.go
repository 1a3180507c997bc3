// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilderDateScopedKey(t *testing.T) {
	kb := NewKeyBuilder("")

	key := kb.DateScopedKey(KeyPrefixEvent, "2026-08-28", "abc-123")
	assert.Equal(t, "event/2026-08-28/abc-123", key)
}

func TestKeyBuilderEncodeDecodeRoundTrip(t *testing.T) {
	kb := NewKeyBuilder("")

	tests := []struct {
		name string
		key  string
	}{
		{name: "simple", key: "event/2026-08-28/abc-123"},
		{name: "uuid with special characters", key: "qos/2026-08-28/aB3+cD//eF==/rec-1"},
		{name: "single part", key: "mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := kb.EncodeKey(tt.key)
			require.NoError(t, err)
			assert.NotContains(t, encoded, "/")

			decoded, err := kb.DecodeKey(encoded)
			require.NoError(t, err)
			assert.Equal(t, "/"+tt.key, decoded)
		})
	}
}

func TestKeyBuilderEncodedKeyMatchesDatePrefix(t *testing.T) {
	kb := NewKeyBuilder("")

	encoded := kb.DateScopedKeyEncoded(KeyPrefixMapping, "2026-08-28", "m-1")
	decoded, err := kb.DecodeKey(encoded)
	require.NoError(t, err)

	prefix := kb.DatePrefix(KeyPrefixMapping, "2026-08-28")
	assert.True(t, strings.Contains(decoded, prefix))

	other := kb.DatePrefix(KeyPrefixMapping, "2026-08-27")
	assert.False(t, strings.Contains(decoded, other))
}

func TestKeyBuilderWithPrefix(t *testing.T) {
	kb := NewKeyBuilder("tracker")

	key := kb.CompoundKey(KeyPrefixQoS, "2026-08-28", "uuid", "rec")
	assert.Equal(t, "tracker/qos/2026-08-28/uuid/rec", key)
}
