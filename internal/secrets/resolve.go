// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package secrets

import (
	"log/slog"
	"strings"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/viper"
)

const scheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseKeyringURI splits keyring://service/key.
func ParseKeyringURI(uri string) (service, key string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", "", odlyerr.Errorf(odlyerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok = strings.Cut(rest, "/")
	if !ok || service == "" || key == "" {
		return "", "", odlyerr.Errorf(odlyerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns value unchanged unless it is a keyring URI, in which case
// the referenced secret is returned.
func Resolve(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Get(service, key)
	if err != nil {
		return "", odlyerr.Wrapf(err, odlyerr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViper replaces every keyring:// string value in v with its secret.
// Failures are logged and the URI is left in place so the consumer of the
// key reports the problem where it matters.
func ResolveViper(v *viper.Viper, store Store, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}
		resolved, err := Resolve(store, val)
		if err != nil {
			logger.Warn("failed to resolve keyring URI, keeping original value", "config_key", key, "error", err)
			continue
		}
		v.Set(key, resolved)
	}
}
