// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference_test

import (
	"testing"

	"github.com/odly-dev/odly/internal/inference"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptFormat_ChatMLWithSystemAndContext(t *testing.T) {
	f, err := inference.LookupPromptFormat("chatml")
	require.NoError(t, err)

	got := f.Render("Use the notes.", "[work]\nstandup at 9", "When is standup?")
	want := "<|im_start|>system\nUse the notes.\n\n[work]\nstandup at 9<|im_end|>\n" +
		"<|im_start|>user\nWhen is standup?<|im_end|>\n" +
		"<|im_start|>assistant\n"
	assert.Equal(t, want, got)
}

func TestPromptFormat_OmitsEmptySystemSegment(t *testing.T) {
	f, err := inference.LookupPromptFormat("")
	require.NoError(t, err)
	assert.Equal(t, "chatml", f.Name)

	got := f.Render("", "  ", "hi")
	assert.Equal(t, "<|im_start|>user\nhi<|im_end|>\n<|im_start|>assistant\n", got)
}

func TestPromptFormat_GemmaFoldsSystemIntoUserTurn(t *testing.T) {
	f, err := inference.LookupPromptFormat("Gemma")
	require.NoError(t, err)

	got := f.Render("Be brief.", "", "hi")
	assert.Equal(t, "<start_of_turn>user\nBe brief.\n\nhi<end_of_turn>\n<start_of_turn>model\n", got)
}

func TestPromptFormat_StopSequencesAreRoleMarkersOnly(t *testing.T) {
	for _, name := range []string{"chatml", "llama3", "gemma"} {
		t.Run(name, func(t *testing.T) {
			f, err := inference.LookupPromptFormat(name)
			require.NoError(t, err)

			stops := f.StopSequences()
			require.NotEmpty(t, stops)
			for _, s := range stops {
				assert.NotContains(t, []string{"\n", "\n\n", " ", ""}, s)
				assert.Contains(t, f.Render("", "", "x"), s, "stop %q should be a role marker of the format", s)
			}

			stops[0] = "mutated"
			assert.NotEqual(t, "mutated", f.StopSequences()[0])
		})
	}
}

func TestPromptFormat_Unknown(t *testing.T) {
	_, err := inference.LookupPromptFormat("alpaca")
	require.Error(t, err)
	assert.True(t, odlyerr.IsInvalidInput(err))
}
