// Package lsp implements a language server for yal on top of the
// incremental parser. Edits reported by the client are applied to the
// previous syntax tree so that only the edited declarations are reparsed.
package lsp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/upprsk/tree-sitter-yal/index"
	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/yal"
)

const lsName = "yal"

// Config is read from the client's initializationOptions. Zero fields
// take their defaults.
type Config struct {
	MaxHeads       int    `json:"maxHeads"`
	RecoveryBudget uint32 `json:"recoveryBudget"`
	MaxDiagnostics int    `json:"maxDiagnostics"`
	// Index is the path of a sqlite database used for workspace symbols.
	// Empty disables the workspace index.
	Index        string `json:"index"`
	PollInterval int    `json:"pollIntervalMs"`
}

func DefaultConfig() Config {
	return Config{
		MaxHeads:       parser.DefaultMaxHeads,
		RecoveryBudget: parser.DefaultRecoveryBudget,
		MaxDiagnostics: 100,
		PollInterval:   1000,
	}
}

// decodeConfig overlays the client options on the defaults.
func decodeConfig(opts any) (Config, error) {
	cfg := DefaultConfig()
	if opts == nil {
		return cfg, nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return cfg, fmt.Errorf("encode initialization options: %w", err)
	}
	var in Config
	if err := json.Unmarshal(data, &in); err != nil {
		return cfg, fmt.Errorf("decode initialization options: %w", err)
	}
	if in.MaxHeads > 0 {
		cfg.MaxHeads = in.MaxHeads
	}
	if in.RecoveryBudget > 0 {
		cfg.RecoveryBudget = in.RecoveryBudget
	}
	if in.MaxDiagnostics > 0 {
		cfg.MaxDiagnostics = in.MaxDiagnostics
	}
	if in.PollInterval > 0 {
		cfg.PollInterval = in.PollInterval
	}
	cfg.Index = in.Index
	return cfg, nil
}

type Server struct {
	handler protocol.Handler
	server  *server.Server
	version string
	log     commonlog.Logger

	mu      sync.Mutex
	config  Config
	root    string
	docs    map[string]*document
	store   *index.Store
	watcher *index.Watcher
}

func NewServer(version string) *Server {
	ls := &Server{
		version: version,
		log:     commonlog.GetLogger("yal.lsp"),
		config:  DefaultConfig(),
		root:    ".",
		docs:    make(map[string]*document),
	}

	ls.handler = protocol.Handler{
		Initialize:                 ls.initialize,
		Initialized:                ls.initialized,
		Shutdown:                   ls.shutdown,
		SetTrace:                   ls.setTrace,
		TextDocumentDidOpen:        ls.textDocumentDidOpen,
		TextDocumentDidChange:      ls.textDocumentDidChange,
		TextDocumentDidClose:       ls.textDocumentDidClose,
		TextDocumentDocumentSymbol: ls.textDocumentDocumentSymbol,
		TextDocumentFormatting:     ls.textDocumentFormatting,
		WorkspaceSymbol:            ls.workspaceSymbol,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	cfg, err := decodeConfig(params.InitializationOptions)
	if err != nil {
		ls.log.Warningf("%s, using defaults", err)
	}

	root := "."
	if params.RootURI != nil && *params.RootURI != "" {
		if path, err := uriToPath(*params.RootURI); err == nil {
			root = path
		}
	} else if params.RootPath != nil && *params.RootPath != "" {
		root = *params.RootPath
	}

	ls.mu.Lock()
	ls.config, ls.root = cfg, root
	ls.mu.Unlock()

	capabilities := ls.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.config.Index == "" {
		return nil
	}
	store, err := index.Open(ls.config.Index)
	if err != nil {
		ls.log.Errorf("workspace index disabled: %s", err)
		return nil
	}
	ls.store = store
	ls.watcher = index.NewWatcher(index.New(ls.root, store), time.Duration(ls.config.PollInterval)*time.Millisecond)
	ls.watcher.Start()
	ls.log.Infof("indexing %s into %s", ls.root, ls.config.Index)
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.watcher != nil {
		ls.watcher.Stop()
		ls.watcher = nil
	}
	if ls.store != nil {
		if err := ls.store.Close(); err != nil {
			ls.log.Errorf("close index: %s", err)
		}
		ls.store = nil
	}
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) newParser() *parser.Parser {
	return parser.New(yal.Grammar(),
		parser.WithMaxHeads(ls.config.MaxHeads),
		parser.WithRecoveryBudget(ls.config.RecoveryBudget),
		parser.WithLogger(commonlog.GetLogger("yal.lsp.parser")),
	)
}

func (ls *Server) document(uri string) *document {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.docs[uri]
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	item := params.TextDocument

	ls.mu.Lock()
	p := ls.newParser()
	ls.mu.Unlock()

	doc, err := newDocument(item.URI, item.Version, item.Text, p)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	ls.docs[item.URI] = doc
	ls.mu.Unlock()

	doc.mu.Lock()
	defer doc.mu.Unlock()
	ls.publishDiagnostics(ctx, doc)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	doc := ls.document(params.TextDocument.URI)
	if doc == nil {
		return fmt.Errorf("change of unknown document %s", params.TextDocument.URI)
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	if err := doc.apply(params.TextDocument.Version, params.ContentChanges); err != nil {
		return err
	}
	stats := doc.parser.Stats()
	ls.log.Debugf("%s v%d: reused %d nodes (%d bytes)", doc.uri, doc.version, stats.Reused, stats.ReusedBytes)
	ls.publishDiagnostics(ctx, doc)
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	ls.mu.Lock()
	delete(ls.docs, uri)
	ls.mu.Unlock()

	ctx.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// publishDiagnostics must be called with doc.mu held.
func (ls *Server) publishDiagnostics(ctx *glsp.Context, doc *document) {
	version := protocol.UInteger(doc.version)
	ctx.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         doc.uri,
		Version:     &version,
		Diagnostics: doc.diagnostics(ls.config.MaxDiagnostics),
	})
}

func (ls *Server) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc := ls.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	return doc.symbols(), nil
}

func (ls *Server) textDocumentFormatting(ctx *glsp.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	doc := ls.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	edits, err := doc.formatting()
	if err != nil {
		ls.log.Infof("not formatting %s: %s", doc.uri, err)
		return nil, nil
	}
	return edits, nil
}

func (ls *Server) workspaceSymbol(ctx *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	ls.mu.Lock()
	store := ls.store
	ls.mu.Unlock()
	if store == nil {
		return nil, nil
	}

	syms, err := store.Search(params.Query, 200)
	if err != nil {
		return nil, err
	}

	sources := map[string][]byte{}
	unreadable := map[string]bool{}
	var out []protocol.SymbolInformation
	for _, s := range syms {
		if unreadable[s.Path] {
			continue
		}
		src, ok := sources[s.Path]
		if !ok {
			var err error
			if src, err = os.ReadFile(s.Path); err != nil {
				ls.log.Warningf("workspace symbol %s: %s", s.Name, err)
				unreadable[s.Path] = true
				continue
			}
			sources[s.Path] = src
		}
		info := protocol.SymbolInformation{
			Name: s.Name,
			Kind: symbolKind(s.Kind),
			Location: protocol.Location{
				URI:   pathToURI(s.Path),
				Range: span(src, lineStarts(src), s.NameStart, s.NameEnd),
			},
		}
		if s.Container != "" {
			container := s.Container
			info.ContainerName = &container
		}
		out = append(out, info)
	}
	return out, nil
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func pathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func boolPtr(b bool) *bool {
	return &b
}
