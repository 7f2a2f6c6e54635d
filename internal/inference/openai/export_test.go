// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package openai

import (
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/odly-dev/odly/internal/inference"
)

// BuildParams exposes buildParams for white-box testing.
var BuildParams = func(model string, req inference.CompletionRequest) (openaisdk.CompletionNewParams, []option.RequestOption) {
	return buildParams(model, req)
}
