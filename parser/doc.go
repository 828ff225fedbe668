// Package parser implements an incremental, error-tolerant GLR parser
// driven by a compiled grammar.
//
// # Overview
//
// The parser turns source bytes into a concrete syntax tree. Given the tree
// of a previous version of the same document, edited with (*tree.Tree).Edit,
// it reuses every subtree the edit did not touch, so reparsing after a
// keystroke costs time proportional to the change rather than to the file.
//
// # Architecture
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Source    │────▶│   Lexer     │────▶│   Heads     │
//	│  (bytes)    │     │  (tokens)   │     │ (GLR stacks)│
//	└─────────────┘     └─────────────┘     └─────────────┘
//	       ▲                                       │
//	       │                                       ▼
//	┌─────────────┐                         ┌─────────────┐
//	│  Old tree   │────── reusable nodes ──▶│  Recovery   │
//	│  (edited)   │                         │ERROR/MISSING│
//	└─────────────┘                         └─────────────┘
//
// # Heads
//
// A head is one candidate parse stack. Heads advance in lock step: the
// lexer runs once per position with the union of the terminals every head
// can accept, then each head reduces and shifts the token. A conflict in
// the table forks a head; heads whose stacks reach the same states merge,
// keeping the derivation with the higher dynamic precedence, then the
// lower error cost, then the one the TieBreak policy picks.
//
// # Error recovery
//
// When no head can accept a token the parser tries, for every head, to
// insert one MISSING token, to pop stack entries into an ERROR node, and to
// skip the token into an ERROR node. All candidates become heads and
// compete by error cost. Once the cheapest head costs more than the
// recovery budget, the rest of the input becomes one trailing ERROR node.
// Parsing never fails: every input produces a tree spanning all of it.
//
// # Reuse
//
// With a single head, the parser looks for a node of the old tree that
// starts at the current position. A candidate must be unchanged, error
// free, not fragile and follow the same external scanner state. Its first
// token is lexed again in the current state and must come out identical;
// the reductions that token triggers run first, then the whole node is
// pushed through the goto table. When a candidate is rejected the search
// descends into its children, down to single tokens.
//
// Reuse stops at the first error. If a parse that pushed reused nodes later
// needs error recovery, it is abandoned and the input is parsed again from
// scratch, so an incremental parse always yields the tree a fresh parse of
// the same source would.
package parser
