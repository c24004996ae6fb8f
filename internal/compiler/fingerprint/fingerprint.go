// Package fingerprint computes the behavioral fingerprint of a contract:
// the set-valued summary of what a body reads, mutates, calls, and emits,
// plus branching/looping/recursion flags and the SHA-256 intent hash.
//
// The fingerprint is a deterministic function of the AST: sets are kept
// sorted and hashing uses fixed byte separators, never map iteration order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/covenant-lang/covenant/compiler/parser"
)

// Fingerprint is the behavioral summary of a single contract
type Fingerprint struct {
	Reads     []string // identifier reads, sorted
	Mutates   []string // assignment targets (dotted paths allowed), sorted
	Calls     []string // called contract and module.method names, sorted
	Emits     []string // emitted event names, sorted
	OldRefs   []string // old() base names, sorted
	CapChecks []string // capabilities tested with has, sorted

	HasBranching bool
	HasLooping   bool
	HasRecursion bool
}

// walker accumulates fingerprint facts while traversing a contract
type walker struct {
	contractName string
	reads        map[string]bool
	mutates      map[string]bool
	calls        map[string]bool
	emits        map[string]bool
	oldRefs      map[string]bool
	capChecks    map[string]bool
	branching    bool
	looping      bool
	recursion    bool
}

// Compute walks a contract's body (and on_failure, if present) and returns
// its behavioral fingerprint. The walk is purely syntactic.
func Compute(c *parser.ContractDecl) *Fingerprint {
	w := &walker{
		contractName: c.Name,
		reads:        map[string]bool{},
		mutates:      map[string]bool{},
		calls:        map[string]bool{},
		emits:        map[string]bool{},
		oldRefs:      map[string]bool{},
		capChecks:    map[string]bool{},
	}

	if c.ExprBody != nil {
		w.walkExpr(c.ExprBody)
	}
	for _, stmt := range c.Body {
		w.walkStmt(stmt)
	}
	for _, stmt := range c.OnFailure {
		w.walkStmt(stmt)
	}
	if c.Post != nil {
		// old() bases are part of the fingerprint even though the
		// postcondition itself is not executed as body code.
		w.collectOldRefs(c.Post)
	}

	return &Fingerprint{
		Reads:        sortedKeys(w.reads),
		Mutates:      sortedKeys(w.mutates),
		Calls:        sortedKeys(w.calls),
		Emits:        sortedKeys(w.emits),
		OldRefs:      sortedKeys(w.oldRefs),
		CapChecks:    sortedKeys(w.capChecks),
		HasBranching: w.branching,
		HasLooping:   w.looping,
		HasRecursion: w.recursion,
	}
}

func (w *walker) walkStmt(stmt parser.StmtNode) {
	switch s := stmt.(type) {
	case *parser.AssignStmt:
		if path := s.TargetPath(); path != "" {
			w.mutates[path] = true
		}
		w.walkExpr(s.Value)
	case *parser.IfStmt:
		w.branching = true
		w.walkExpr(s.Cond)
		for _, st := range s.Then {
			w.walkStmt(st)
		}
		for _, st := range s.Else {
			w.walkStmt(st)
		}
	case *parser.WhileStmt:
		w.looping = true
		w.walkExpr(s.Cond)
		for _, st := range s.Body {
			w.walkStmt(st)
		}
	case *parser.ForStmt:
		w.looping = true
		w.walkExpr(s.Iter)
		for _, st := range s.Body {
			w.walkStmt(st)
		}
	case *parser.ReturnStmt:
		if s.Value != nil {
			w.walkExpr(s.Value)
		}
	case *parser.EmitStmt:
		w.emits[s.Event] = true
		for _, arg := range s.Args {
			w.walkExpr(arg)
		}
	case *parser.ParallelStmt:
		for _, st := range s.Body {
			w.walkStmt(st)
		}
	case *parser.ExprStmt:
		w.walkExpr(s.Expr)
	}
}

func (w *walker) walkExpr(expr parser.ExprNode) {
	switch e := expr.(type) {
	case *parser.IdentifierExpr:
		w.reads[e.Name] = true
	case *parser.BinaryExpr:
		w.walkExpr(e.Left)
		w.walkExpr(e.Right)
	case *parser.UnaryExpr:
		w.walkExpr(e.Operand)
	case *parser.CallExpr:
		w.calls[e.Callee] = true
		if e.Callee == w.contractName {
			w.recursion = true
		}
		for _, arg := range e.Args {
			w.walkExpr(arg)
		}
		for _, kw := range e.KwArgs {
			w.walkExpr(kw.Value)
		}
	case *parser.MethodCallExpr:
		if recv, ok := e.Receiver.(*parser.IdentifierExpr); ok {
			w.calls[recv.Name+"."+e.Method] = true
		} else {
			w.walkExpr(e.Receiver)
			w.calls[e.Method] = true
		}
		for _, arg := range e.Args {
			w.walkExpr(arg)
		}
		for _, kw := range e.KwArgs {
			w.walkExpr(kw.Value)
		}
	case *parser.ObjectExpr:
		for _, kw := range e.Fields {
			w.walkExpr(kw.Value)
		}
	case *parser.FieldAccessExpr:
		if path := parser.DottedPath(e); path != "" {
			w.reads[path] = true
		} else {
			w.walkExpr(e.Object)
		}
	case *parser.IndexExpr:
		w.walkExpr(e.Object)
		w.walkExpr(e.Index)
	case *parser.ListExpr:
		for _, el := range e.Elements {
			w.walkExpr(el)
		}
	case *parser.OldExpr:
		if base := e.BaseName(); base != "" {
			w.oldRefs[base] = true
		}
		w.walkExpr(e.Operand)
	case *parser.HasExpr:
		w.capChecks[e.Capability] = true
	case *parser.AwaitExpr:
		w.walkExpr(e.Operand)
	}
}

// collectOldRefs walks an expression collecting only old() base names
func (w *walker) collectOldRefs(expr parser.ExprNode) {
	switch e := expr.(type) {
	case *parser.OldExpr:
		if base := e.BaseName(); base != "" {
			w.oldRefs[base] = true
		}
	case *parser.BinaryExpr:
		w.collectOldRefs(e.Left)
		w.collectOldRefs(e.Right)
	case *parser.UnaryExpr:
		w.collectOldRefs(e.Operand)
	case *parser.CallExpr:
		for _, arg := range e.Args {
			w.collectOldRefs(arg)
		}
	case *parser.MethodCallExpr:
		w.collectOldRefs(e.Receiver)
		for _, arg := range e.Args {
			w.collectOldRefs(arg)
		}
	case *parser.FieldAccessExpr:
		w.collectOldRefs(e.Object)
	case *parser.IndexExpr:
		w.collectOldRefs(e.Object)
		w.collectOldRefs(e.Index)
	case *parser.ListExpr:
		for _, el := range e.Elements {
			w.collectOldRefs(el)
		}
	case *parser.AwaitExpr:
		w.collectOldRefs(e.Operand)
	}
}

// Canonical renders the fingerprint in its canonical serialized form:
// each set sorted and joined with 0x1F, sections joined with 0x1E, and
// the three flags rendered as 0/1.
func (f *Fingerprint) Canonical() string {
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	sections := []string{
		strings.Join(f.Reads, "\x1f"),
		strings.Join(f.Mutates, "\x1f"),
		strings.Join(f.Calls, "\x1f"),
		strings.Join(f.Emits, "\x1f"),
		strings.Join(f.OldRefs, "\x1f"),
		strings.Join(f.CapChecks, "\x1f"),
		flag(f.HasBranching),
		flag(f.HasLooping),
		flag(f.HasRecursion),
	}
	return strings.Join(sections, "\x1e")
}

// IntentHash computes the SHA-256 intent hash: the hash of the intent
// string, a NUL separator, and the canonical fingerprint.
func IntentHash(intent string, f *Fingerprint) string {
	h := sha256.New()
	h.Write([]byte(intent))
	h.Write([]byte{0x00})
	h.Write([]byte(f.Canonical()))
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
