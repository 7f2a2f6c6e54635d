// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference

import (
	"strings"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// PromptFormat renders role-structured prompts for one model family. Stop
// sequences are role boundaries only; stopping on blank lines would cut
// multi-paragraph answers short.
type PromptFormat struct {
	Name string

	systemOpen, systemClose string
	userOpen, userClose     string
	assistantOpen           string
	stop                    []string
	foldSystemIntoUser      bool
}

var promptFormats = map[string]PromptFormat{
	"chatml": {
		Name:          "chatml",
		systemOpen:    "<|im_start|>system\n",
		systemClose:   "<|im_end|>\n",
		userOpen:      "<|im_start|>user\n",
		userClose:     "<|im_end|>\n",
		assistantOpen: "<|im_start|>assistant\n",
		stop:          []string{"<|im_end|>", "<|im_start|>"},
	},
	"llama3": {
		Name:          "llama3",
		systemOpen:    "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\n",
		systemClose:   "<|eot_id|>",
		userOpen:      "<|start_header_id|>user<|end_header_id|>\n\n",
		userClose:     "<|eot_id|>",
		assistantOpen: "<|start_header_id|>assistant<|end_header_id|>\n\n",
		stop:          []string{"<|eot_id|>", "<|start_header_id|>"},
	},
	// Gemma has no system role; the system segment is prepended to the user turn.
	"gemma": {
		Name:               "gemma",
		userOpen:           "<start_of_turn>user\n",
		userClose:          "<end_of_turn>\n",
		assistantOpen:      "<start_of_turn>model\n",
		stop:               []string{"<end_of_turn>", "<start_of_turn>"},
		foldSystemIntoUser: true,
	},
}

// LookupPromptFormat returns the named format. An empty name selects chatml.
func LookupPromptFormat(name string) (PromptFormat, error) {
	if name == "" {
		name = "chatml"
	}
	f, ok := promptFormats[strings.ToLower(name)]
	if !ok {
		return PromptFormat{}, odlyerr.New(odlyerr.CodeConfigValidateInvalidValue, "unknown prompt format",
			odlyerr.Field("prompt_format", name))
	}
	return f, nil
}

// Render builds the prompt: an optional system segment carrying the system
// instruction and context, the user segment, then the assistant marker the
// model continues from.
func (f PromptFormat) Render(system, contextText, user string) string {
	sys := joinNonEmpty(system, contextText)

	var b strings.Builder
	if sys != "" && !f.foldSystemIntoUser {
		b.WriteString(f.systemOpen)
		b.WriteString(sys)
		b.WriteString(f.systemClose)
	}
	b.WriteString(f.userOpen)
	if sys != "" && f.foldSystemIntoUser {
		b.WriteString(sys)
		b.WriteString("\n\n")
	}
	b.WriteString(user)
	b.WriteString(f.userClose)
	b.WriteString(f.assistantOpen)
	return b.String()
}

// StopSequences returns a copy of the role-boundary markers.
func (f PromptFormat) StopSequences() []string {
	return append([]string(nil), f.stop...)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
