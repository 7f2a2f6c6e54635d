// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package knowledge

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"os"
	"path"
	"path/filepath"
	"strconv"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// offlineBpeLoader reads tiktoken rank files from a local directory and
// never fetches them over the network. A rank file is looked up by the base
// name of the URL tiktoken asks for, e.g. cl100k_base.tiktoken.
type offlineBpeLoader struct {
	dir string
}

func (l offlineBpeLoader) LoadTiktokenBpe(file string) (map[string]int, error) {
	name := filepath.Join(l.dir, path.Base(file))
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeKnowledgeEncodingUnavailable,
			"token encoding file not found locally", odlyerr.Field("path", name))
	}
	return parseBpeRanks(data, name)
}

// parseBpeRanks decodes "<base64 token> <rank>" lines.
func parseBpeRanks(data []byte, name string) (map[string]int, error) {
	ranks := make(map[string]int)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		tok, rank, ok := bytes.Cut(raw, []byte(" "))
		if !ok {
			return nil, malformedRanks(name, line)
		}
		decoded, err := base64.StdEncoding.DecodeString(string(tok))
		if err != nil {
			return nil, malformedRanks(name, line)
		}
		n, err := strconv.Atoi(string(rank))
		if err != nil {
			return nil, malformedRanks(name, line)
		}
		ranks[string(decoded)] = n
	}
	if err := sc.Err(); err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeKnowledgeEncodingUnavailable,
			"reading token encoding file", odlyerr.Field("path", name))
	}
	return ranks, nil
}

func malformedRanks(name string, line int) error {
	return odlyerr.New(odlyerr.CodeKnowledgeEncodingUnavailable, "malformed token encoding file",
		odlyerr.Field("path", name), odlyerr.Field("line", line))
}
