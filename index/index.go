// Package index keeps a searchable sqlite index of the declarations in a
// tree of yal files.
package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/yal"
)

// Ext is the extension of indexed files.
const Ext = ".yal"

// Indexer parses yal files and records their declarations in a Store.
type Indexer struct {
	mu     sync.Mutex
	root   string
	store  *Store
	parser *parser.Parser
	log    commonlog.Logger
}

func New(root string, store *Store) *Indexer {
	return &Indexer{
		root:   root,
		store:  store,
		parser: parser.New(yal.Grammar()),
		log:    commonlog.GetLogger("yal.index"),
	}
}

func (ix *Indexer) Root() string { return ix.root }

func (ix *Indexer) Store() *Store { return ix.store }

// IndexFile parses path and replaces its declarations.
func (ix *Indexer) IndexFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return ix.UpdateFile(path, info.ModTime().Unix(), src)
}

// UpdateFile indexes src as the content of path.
func (ix *Indexer) UpdateFile(path string, modTime int64, src []byte) error {
	ix.mu.Lock()
	t, err := ix.parser.Parse(src, nil)
	ix.mu.Unlock()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	syms := Extract(t, src)
	rec := FileRecord{Path: path, LastModified: modTime, HasError: t.HasError()}
	if err := ix.store.ReplaceFile(rec, syms); err != nil {
		return fmt.Errorf("index %s: %w", path, err)
	}
	ix.log.Debugf("indexed %s: %d declarations", path, len(syms))
	return nil
}

func (ix *Indexer) RemoveFile(path string) error {
	if err := ix.store.RemoveFile(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	ix.log.Debugf("removed %s", path)
	return nil
}

// IndexAll indexes every yal file under the root, skipping dot
// directories, and returns how many files were indexed. Files that fail
// are logged and skipped.
func (ix *Indexer) IndexAll() (int, error) {
	n := 0
	err := walk(ix.root, func(path string, _ fs.FileInfo) {
		if err := ix.IndexFile(path); err != nil {
			ix.log.Errorf("%s", err)
			return
		}
		n++
	})
	return n, err
}

func walk(root string, visit func(path string, info fs.FileInfo)) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == Ext {
			visit(path, info)
		}
		return nil
	})
}
