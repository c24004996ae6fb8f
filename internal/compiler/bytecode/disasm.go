package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a module in human-readable form: the constant pool,
// event table, contract symbol table, and annotated instruction stream.
func Disassemble(m *Module) string {
	var b strings.Builder

	fmt.Fprintf(&b, "module %s (format v%d)\n\n", m.Name, Version)

	if len(m.Constants) > 0 {
		b.WriteString("constants:\n")
		for i, c := range m.Constants {
			fmt.Fprintf(&b, "  #%-4d %s\n", i, c)
		}
		b.WriteByte('\n')
	}

	if len(m.Events) > 0 {
		b.WriteString("events:\n")
		for i, e := range m.Events {
			fmt.Fprintf(&b, "  #%-4d %s\n", i, e)
		}
		b.WriteByte('\n')
	}

	if len(m.Imports) > 0 {
		fmt.Fprintf(&b, "imports: %s\n\n", strings.Join(m.Imports, ", "))
	}

	if len(m.Shared) > 0 {
		b.WriteString("shared:\n")
		for i, s := range m.Shared {
			fmt.Fprintf(&b, "  #%-4d %s\n", i, s.Name)
		}
		b.WriteByte('\n')
	}

	// Map entry offsets to contract names for region headers.
	regions := map[int]string{}
	for _, c := range m.Contracts {
		regions[int(c.Entry)] = c.Name
		if c.OnFailureEntry >= 0 {
			regions[int(c.OnFailureEntry)] = c.Name + " (on_failure)"
		}
	}

	b.WriteString("contracts:\n")
	for _, c := range m.Contracts {
		fmt.Fprintf(&b, "  %s/%d entry=%d locals=%d", c.Name, c.NumParams, c.Entry, c.NumLocals)
		if c.OnFailureEntry >= 0 {
			fmt.Fprintf(&b, " on_failure=%d", c.OnFailureEntry)
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString("code:\n")
	for i, ins := range m.Code {
		if name, ok := regions[i]; ok {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		fmt.Fprintf(&b, "  %04d  %s", i, ins)
		switch ins.Op {
		case OpConstant:
			if int(ins.A) < len(m.Constants) {
				fmt.Fprintf(&b, "  ; %s", m.Constants[ins.A])
			}
		case OpLoadField, OpStoreField:
			if int(ins.A) < len(m.Constants) {
				fmt.Fprintf(&b, "  ; %s", m.Constants[ins.A])
			}
		case OpCall:
			if int(ins.A) < len(m.Contracts) {
				fmt.Fprintf(&b, "  ; %s", m.Contracts[ins.A].Name)
			}
		case OpCallModule:
			if int(ins.A) < len(m.Sites) {
				site := m.Sites[ins.A]
				switch site.Kind {
				case SiteDispatch:
					fmt.Fprintf(&b, "  ; %s.%s", site.Module, site.Method)
				case SiteBuiltin:
					fmt.Fprintf(&b, "  ; builtin %s", site.Method)
				case SiteConstruct:
					fmt.Fprintf(&b, "  ; new %s", site.Module)
				}
			}
		case OpEmit:
			if int(ins.A) < len(m.Events) {
				fmt.Fprintf(&b, "  ; %s", m.Events[ins.A])
			}
		case OpLoadShared, OpStoreShared:
			if int(ins.A) < len(m.Shared) {
				fmt.Fprintf(&b, "  ; %s", m.Shared[ins.A].Name)
			}
		case OpJump, OpJumpIfFalse:
			fmt.Fprintf(&b, "  ; -> %04d", i+1+int(ins.A))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
