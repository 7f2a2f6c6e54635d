// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package secrets_test

import (
	"testing"

	"github.com/odly-dev/odly/internal/secrets"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://odly/engine_api_key", "odly", "engine_api_key", false},
		{"slashes in key", "keyring://odly/path/to/key", "odly", "path/to/key", false},
		{"other scheme", "vault://secret/key", "", "", true},
		{"missing key", "keyring://odly/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"no path", "keyring://odly", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, odlyerr.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("test-resolve", "key", "resolved-secret"))

	got, err := secrets.Resolve(ks, "keyring://test-resolve/key")
	require.NoError(t, err)
	assert.Equal(t, "resolved-secret", got)

	got, err = secrets.Resolve(ks, "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", got)

	_, err = secrets.Resolve(ks, "keyring://test-resolve/missing")
	require.Error(t, err)
	assert.True(t, odlyerr.IsNotFound(err), "inner not-found code survives the wrap")
}

func TestResolveViper(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("test-viper", "engine", "sk-123"))

	v := viper.New()
	v.Set("engine.api_key", "keyring://test-viper/engine")
	v.Set("engine.endpoint", "http://127.0.0.1:8080")
	v.Set("other.secret", "keyring://test-viper/missing")

	secrets.ResolveViper(v, ks, nil)

	assert.Equal(t, "sk-123", v.GetString("engine.api_key"))
	assert.Equal(t, "http://127.0.0.1:8080", v.GetString("engine.endpoint"))
	assert.Equal(t, "keyring://test-viper/missing", v.GetString("other.secret"))
}
