// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package knowledge

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a text occupies.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter assumes roughly four bytes of UTF-8 text per token.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter returns a tiktoken counter for encoding, reading its rank
// file from dir. Nothing is downloaded: tiktoken's default loader fetches
// over the network without a deadline, so a missing or unreadable rank file
// falls back to the heuristic counter. The local model's own tokenizer
// differs, so the count is an estimate either way.
func NewTokenCounter(encoding, dir string, logger *slog.Logger) TokenCounter {
	if logger == nil {
		logger = slog.Default()
	}
	if encoding == "" || dir == "" {
		return HeuristicCounter{}
	}
	tiktoken.SetBpeLoader(offlineBpeLoader{dir: dir})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("token encoding unavailable, using heuristic counter",
			"encoding", encoding, "dir", dir, "error", err)
		return HeuristicCounter{}
	}
	return tiktokenCounter{enc: enc}
}
