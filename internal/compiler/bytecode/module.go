package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/covenant-lang/covenant/compiler/errors"
)

// Magic identifies a serialized Covenant bytecode module
var Magic = [4]byte{0xC0, 'C', 'O', 'V'}

// Version is the current .covc format version
const Version byte = 1

// ConstKind tags a constant pool entry
type ConstKind byte

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstNull
	ConstBool
)

// Constant is a typed constant pool entry
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// String renders the constant for disassembly
func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("int %d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("float %g", c.Float)
	case ConstString:
		return fmt.Sprintf("string %q", c.Str)
	case ConstNull:
		return "null"
	case ConstBool:
		return fmt.Sprintf("bool %v", c.Bool)
	default:
		return "unknown"
	}
}

// Contract flag bits
const (
	FlagAsync byte = 1 << iota
	FlagPure
	FlagHasPre
	FlagHasPost
	FlagHasOnFailure
	FlagExprBody
)

// Type tags for return types and shared cells
const (
	TagAny byte = iota
	TagInt
	TagFloat
	TagString
	TagBool
	TagNull
	TagList
	TagObject
	TagNamed
)

// ContractInfo is a per-contract symbol table entry
type ContractInfo struct {
	Name           string
	Entry          int32 // first instruction index
	OnFailureEntry int32 // -1 when absent
	NumParams      int32
	NumLocals      int32
	NumOldSlots    int32
	ResultSlot     int32
	ReturnTag      byte
	Flags          byte
	ParamNames     []string
}

// HasFlag reports whether a contract flag is set
func (c *ContractInfo) HasFlag(flag byte) bool {
	return c.Flags&flag != 0
}

// SharedCell describes a process-wide named mutable cell
type SharedCell struct {
	Name    string
	TypeTag byte
}

// SiteKind discriminates call site table entries
type SiteKind byte

const (
	SiteDispatch  SiteKind = iota // host module dispatch
	SiteBuiltin                   // VM builtin (range, len, print, str)
	SiteConstruct                 // object construction
)

// CallSite carries the out-of-line operands of OpCallModule: module and
// method names plus the keyword argument names for the trailing arguments.
// For constructions, Module is the type name and KwNames the field names.
type CallSite struct {
	Kind    SiteKind
	Module  string
	Method  string
	KwNames []string
}

// Module is an immutable compiled bytecode module
type Module struct {
	Name         string // source file name
	Constants    []Constant
	Events       []string
	Contracts    []ContractInfo
	Shared       []SharedCell
	Imports      []string
	Sites        []CallSite
	Code         []Instruction
	SourceMap    []errors.SourceLocation // one entry per instruction
	NumLoopSites int32
}

// Contract looks up a contract by name
func (m *Module) Contract(name string) (*ContractInfo, int32, bool) {
	for i := range m.Contracts {
		if m.Contracts[i].Name == name {
			return &m.Contracts[i], int32(i), true
		}
	}
	return nil, 0, false
}

// LocationAt returns the source location of an instruction, for runtime
// error reporting.
func (m *Module) LocationAt(ip int) errors.SourceLocation {
	if ip >= 0 && ip < len(m.SourceMap) {
		return m.SourceMap[ip]
	}
	return errors.SourceLocation{File: m.Name}
}

// Serialization. All integers are little-endian; strings are u32
// length-prefixed UTF-8. The section order is fixed: magic, version,
// module name, constant pool, event table, contract table, instructions,
// then the shared cell table, import list, call site table, source map,
// and finally the loop-site count.

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) write(v interface{}) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *writer) writeString(s string) {
	w.write(uint32(len(s)))
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) writeStrings(list []string) {
	w.write(uint32(len(list)))
	for _, s := range list {
		w.writeString(s)
	}
}

// Serialize writes the module in .covc format
func (m *Module) Serialize(out io.Writer) error {
	w := &writer{w: out}
	w.write(Magic)
	w.write(Version)
	w.writeString(m.Name)

	// Constant pool
	w.write(uint32(len(m.Constants)))
	for _, c := range m.Constants {
		w.write(byte(c.Kind))
		switch c.Kind {
		case ConstInt:
			w.write(c.Int)
		case ConstFloat:
			w.write(math.Float64bits(c.Float))
		case ConstString:
			w.writeString(c.Str)
		case ConstBool:
			var b byte
			if c.Bool {
				b = 1
			}
			w.write(b)
		case ConstNull:
		}
	}

	// Event name table
	w.writeStrings(m.Events)

	// Contract table
	w.write(uint32(len(m.Contracts)))
	for _, c := range m.Contracts {
		w.writeString(c.Name)
		w.write(c.Entry)
		w.write(c.OnFailureEntry)
		w.write(c.NumParams)
		w.write(c.NumLocals)
		w.write(c.NumOldSlots)
		w.write(c.ResultSlot)
		w.write(c.ReturnTag)
		w.write(c.Flags)
		w.writeStrings(c.ParamNames)
	}

	// Instruction stream: fixed 12-byte instructions, length-prefixed
	w.write(uint32(len(m.Code)))
	for _, ins := range m.Code {
		w.write(byte(ins.Op))
		w.write([3]byte{})
		w.write(ins.A)
		w.write(ins.B)
	}

	// Shared cell table
	w.write(uint32(len(m.Shared)))
	for _, s := range m.Shared {
		w.writeString(s.Name)
		w.write(s.TypeTag)
	}

	// Import list
	w.writeStrings(m.Imports)

	// Call site table
	w.write(uint32(len(m.Sites)))
	for _, s := range m.Sites {
		w.write(byte(s.Kind))
		w.writeString(s.Module)
		w.writeString(s.Method)
		w.writeStrings(s.KwNames)
	}

	// Source map
	w.write(uint32(len(m.SourceMap)))
	for _, loc := range m.SourceMap {
		w.writeString(loc.File)
		w.write(int32(loc.Line))
		w.write(int32(loc.Column))
		w.write(int32(loc.Start))
		w.write(int32(loc.End))
	}

	w.write(m.NumLoopSites)
	return w.err
}

// Bytes serializes the module into a byte slice
func (m *Module) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) read(v interface{}) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

func (r *reader) readString() string {
	var n uint32
	r.read(&n)
	if r.err != nil {
		return ""
	}
	if n > MaxSectionLen {
		r.err = fmt.Errorf("corrupt module: string length %d", n)
		return ""
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.r, buf)
	return string(buf)
}

func (r *reader) readStrings() []string {
	var n uint32
	r.read(&n)
	if r.err != nil {
		return nil
	}
	if n > MaxSectionLen {
		r.err = fmt.Errorf("corrupt module: list length %d", n)
		return nil
	}
	list := make([]string, n)
	for i := range list {
		list[i] = r.readString()
	}
	return list
}

// MaxSectionLen bounds section counts when deserializing untrusted input
const MaxSectionLen = 1 << 24

// Deserialize reads a module in .covc format
func Deserialize(in io.Reader) (*Module, error) {
	r := &reader{r: in}

	var magic [4]byte
	r.read(&magic)
	if r.err != nil {
		return nil, r.err
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a Covenant bytecode module")
	}
	var version byte
	r.read(&version)
	if version != Version {
		return nil, fmt.Errorf("unsupported bytecode version %d", version)
	}

	m := &Module{}
	m.Name = r.readString()

	var nConst uint32
	r.read(&nConst)
	if r.err == nil && nConst > MaxSectionLen {
		return nil, fmt.Errorf("corrupt module: constant count %d", nConst)
	}
	m.Constants = make([]Constant, nConst)
	for i := range m.Constants {
		var kind byte
		r.read(&kind)
		c := Constant{Kind: ConstKind(kind)}
		switch c.Kind {
		case ConstInt:
			r.read(&c.Int)
		case ConstFloat:
			var bits uint64
			r.read(&bits)
			c.Float = math.Float64frombits(bits)
		case ConstString:
			c.Str = r.readString()
		case ConstBool:
			var b byte
			r.read(&b)
			c.Bool = b != 0
		case ConstNull:
		default:
			return nil, fmt.Errorf("corrupt module: constant kind %d", kind)
		}
		m.Constants[i] = c
	}

	m.Events = r.readStrings()

	var nContracts uint32
	r.read(&nContracts)
	if r.err == nil && nContracts > MaxSectionLen {
		return nil, fmt.Errorf("corrupt module: contract count %d", nContracts)
	}
	m.Contracts = make([]ContractInfo, nContracts)
	for i := range m.Contracts {
		c := ContractInfo{}
		c.Name = r.readString()
		r.read(&c.Entry)
		r.read(&c.OnFailureEntry)
		r.read(&c.NumParams)
		r.read(&c.NumLocals)
		r.read(&c.NumOldSlots)
		r.read(&c.ResultSlot)
		r.read(&c.ReturnTag)
		r.read(&c.Flags)
		c.ParamNames = r.readStrings()
		m.Contracts[i] = c
	}

	var nCode uint32
	r.read(&nCode)
	if r.err == nil && nCode > MaxSectionLen {
		return nil, fmt.Errorf("corrupt module: instruction count %d", nCode)
	}
	m.Code = make([]Instruction, nCode)
	for i := range m.Code {
		var op byte
		var pad [3]byte
		ins := Instruction{}
		r.read(&op)
		r.read(&pad)
		r.read(&ins.A)
		r.read(&ins.B)
		ins.Op = Opcode(op)
		m.Code[i] = ins
	}

	var nShared uint32
	r.read(&nShared)
	if r.err == nil && nShared > MaxSectionLen {
		return nil, fmt.Errorf("corrupt module: shared count %d", nShared)
	}
	m.Shared = make([]SharedCell, nShared)
	for i := range m.Shared {
		m.Shared[i].Name = r.readString()
		r.read(&m.Shared[i].TypeTag)
	}

	m.Imports = r.readStrings()

	var nSites uint32
	r.read(&nSites)
	if r.err == nil && nSites > MaxSectionLen {
		return nil, fmt.Errorf("corrupt module: call site count %d", nSites)
	}
	m.Sites = make([]CallSite, nSites)
	for i := range m.Sites {
		var kind byte
		r.read(&kind)
		m.Sites[i].Kind = SiteKind(kind)
		m.Sites[i].Module = r.readString()
		m.Sites[i].Method = r.readString()
		m.Sites[i].KwNames = r.readStrings()
	}

	var nMap uint32
	r.read(&nMap)
	if r.err == nil && nMap > MaxSectionLen {
		return nil, fmt.Errorf("corrupt module: source map count %d", nMap)
	}
	m.SourceMap = make([]errors.SourceLocation, nMap)
	for i := range m.SourceMap {
		var line, col, start, end int32
		m.SourceMap[i].File = r.readString()
		r.read(&line)
		r.read(&col)
		r.read(&start)
		r.read(&end)
		m.SourceMap[i].Line = int(line)
		m.SourceMap[i].Column = int(col)
		m.SourceMap[i].Start = int(start)
		m.SourceMap[i].End = int(end)
	}

	r.read(&m.NumLoopSites)
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}
