// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package health

import "time"

// Metrics exposes the current health state of the inference session for
// monitoring and operator visibility. All fields are point-in-time snapshots
// safe to serialize to JSON.
type Metrics struct {
	State         string     `json:"state"`
	ModelPath     string     `json:"model_path,omitempty"`
	LoadAttempts  int64      `json:"load_attempts"`
	ProbeFailures int64      `json:"probe_failures"`
	Reinits       int64      `json:"reinits"`
	FailureCount  int64      `json:"failure_count"`
	LastFailure   string     `json:"last_failure,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	ReadySince    *time.Time `json:"ready_since,omitempty"`
	Available     bool       `json:"available"`
}
