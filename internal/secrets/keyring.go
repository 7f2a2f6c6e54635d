// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

// Package secrets keeps credentials such as engine.api_key out of the config
// file by storing them in the OS keyring and resolving keyring:// references.
package secrets

import (
	"encoding/json"
	"errors"
	"slices"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/zalando/go-keyring"
)

// Service is the keyring service name odly stores secrets under.
const Service = "odly"

// indexKey holds a JSON list of stored names; go-keyring cannot enumerate.
const indexKey = "::index"

// Store provides secret storage operations.
type Store interface {
	Set(service, key, value string) error
	// Get returns a CodeSecretNotFound error if the key does not exist.
	Get(service, key string) (string, error)
	Delete(service, key string) error
	List(service string) ([]string, error)
}

// KeyringStore implements Store with the OS keyring (Keychain, Secret
// Service or Credential Manager).
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	names, err := s.List(service)
	if err != nil {
		return err
	}
	if slices.Contains(names, key) {
		return nil
	}
	return s.saveIndex(service, append(names, key))
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkName(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", odlyerr.Errorf(odlyerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return odlyerr.Errorf(odlyerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}

	names, err := s.List(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(names, func(n string) bool { return n == key }))
}

func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "loading secret index for %s", service)
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "decoding secret index for %s", service)
	}
	return names, nil
}

func (s *KeyringStore) saveIndex(service string, names []string) error {
	if len(names) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "clearing secret index for %s", service)
		}
		return nil
	}

	data, err := json.Marshal(names)
	if err != nil {
		return odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "encoding secret index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return odlyerr.Wrapf(err, odlyerr.CodeSecretStoreFailure, "saving secret index for %s", service)
	}
	return nil
}

func checkName(service, key string) error {
	if service == "" || key == "" {
		return odlyerr.New(odlyerr.CodeSecretInvalidInput, "secret service and key must not be empty")
	}
	if key == indexKey {
		return odlyerr.New(odlyerr.CodeSecretInvalidInput, "secret key is reserved", odlyerr.Field("key", key))
	}
	return nil
}
