// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package knowledge

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

//go:embed builtin/*.md
var builtinFS embed.FS

var _ store.SourceStore = (*Builtin)(nil)

// Builtin is the read-only source collection shipped with the binary. Each
// document is markdown with a YAML front matter block carrying its id.
type Builtin struct {
	ids     []string
	sources map[string]store.KnowledgeSource
	titles  map[string]string
}

type frontMatter struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// NewBuiltin parses the embedded collection.
func NewBuiltin() (*Builtin, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return LoadBuiltin(sub)
}

// LoadBuiltin parses every *.md file at the root of fsys, in file name order.
func LoadBuiltin(fsys fs.FS) (*Builtin, error) {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeKnowledgeBuiltinParseInvalid, "listing builtin sources")
	}

	b := &Builtin{
		sources: make(map[string]store.KnowledgeSource, len(names)),
		titles:  make(map[string]string, len(names)),
	}
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, odlyerr.Wrapf(err, odlyerr.CodeKnowledgeBuiltinParseInvalid, "reading %s", name)
		}
		meta, body, err := parseDocument(raw)
		if err != nil {
			return nil, odlyerr.Wrapf(err, odlyerr.CodeKnowledgeBuiltinParseInvalid, "parsing %s", name)
		}
		if meta.ID == "" {
			meta.ID = strings.TrimSuffix(path.Base(name), ".md")
		}
		if _, dup := b.sources[meta.ID]; dup {
			return nil, odlyerr.Errorf(odlyerr.CodeKnowledgeBuiltinParseInvalid, "duplicate builtin source id %q in %s", meta.ID, name)
		}
		b.ids = append(b.ids, meta.ID)
		b.sources[meta.ID] = store.NewKnowledgeSource(meta.ID, body)
		b.titles[meta.ID] = meta.Title
	}
	return b, nil
}

func parseDocument(raw []byte) (frontMatter, string, error) {
	var meta frontMatter
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))

	rest, ok := bytes.CutPrefix(raw, []byte("---\n"))
	if !ok {
		return meta, strings.TrimSpace(string(raw)), nil
	}
	header, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return meta, "", fmt.Errorf("unterminated front matter")
	}
	if err := yaml.Unmarshal(header, &meta); err != nil {
		return meta, "", fmt.Errorf("front matter: %w", err)
	}
	return meta, strings.TrimSpace(string(body)), nil
}

func (b *Builtin) ListIdentifiers(context.Context) ([]string, error) {
	return append([]string(nil), b.ids...), nil
}

func (b *Builtin) ReadContent(_ context.Context, id string) (store.KnowledgeSource, error) {
	src, ok := b.sources[id]
	if !ok {
		return store.KnowledgeSource{}, fmt.Errorf("builtin source %s: %w", id, store.ErrNotFound)
	}
	return src, nil
}

// Has reports whether id names a builtin source.
func (b *Builtin) Has(id string) bool {
	_, ok := b.sources[id]
	return ok
}

// Title returns the human-readable title of a builtin source.
func (b *Builtin) Title(id string) string {
	return b.titles[id]
}
