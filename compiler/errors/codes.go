package errors

// Static diagnostic codes organized by verification pass
// E001-E005: intent verification errors (effect violations)
// W001-W008: intent verification warnings
// I001-I002: intent verification info
// F001-F006: capability / information flow control
// V001-V005: contract verification
// T001-T004: type checking

const (
	// Intent verification errors (E-codes)
	ErrUndeclaredMutation   = "E001"
	ErrTouchesSomethingElse = "E003"
	ErrMissingBody          = "E004"
	ErrUndeclaredEmit       = "E005"

	// Intent verification warnings (W-codes)
	WarnUnobservedModify      = "W001"
	WarnUnobservedRead        = "W002"
	WarnIntentMismatch        = "W003"
	WarnUnachievable          = "W004"
	WarnMissingSection        = "W005"
	WarnUnobservedEmit        = "W006"
	WarnOldNotModified        = "W007"
	WarnMissingFailureHandler = "W008"

	// Intent verification info (I-codes)
	InfoRecursion   = "I001"
	InfoDeepNesting = "I002"

	// Capability / IFC (F-codes)
	ErrTaintedFlow         = "F001"
	ErrPermissionDenied    = "F002"
	ErrUngrantedSource     = "F003"
	ErrUncheckedCapability = "F004"
	ErrUnknownCapability   = "F005"
	ErrGrantDenyConflict   = "F006"

	// Contract verification (V-codes)
	ErrMissingReturn       = "V001"
	ErrUnreachableCode     = "V002"
	ErrMissingOnFailure    = "V003"
	ErrResultWithoutReturn = "V004"
	ErrUndeclaredShared    = "V005"

	// Type checking (T-codes)
	ErrArgumentType  = "T001"
	ErrReturnType    = "T002"
	ErrOperandType   = "T003"
	ErrArityMismatch = "T004"
)

// Messages maps diagnostic codes to their default message templates
var Messages = map[string]string{
	ErrUndeclaredMutation:   "Body mutates a name not listed in effects: modifies",
	ErrTouchesSomethingElse: "touches_nothing_else is declared but the body calls outside the declared closure",
	ErrMissingBody:          "Contract has no body section",
	ErrUndeclaredEmit:       "Body emits an event not listed in effects: emits",

	WarnUnobservedModify:      "Declared modification is never performed by the body",
	WarnUnobservedRead:        "Declared read is never performed by the body",
	WarnIntentMismatch:        "Declared intent does not match observed behavior",
	WarnUnachievable:          "Postcondition cannot be satisfied by any execution",
	WarnMissingSection:        "Missing section required by the contract's risk level",
	WarnUnobservedEmit:        "Declared emit is never performed by the body",
	WarnOldNotModified:        "old() references a base that is not listed in modifies",
	WarnMissingFailureHandler: "Contract has no on_failure handler",

	InfoRecursion:   "Contract is recursive",
	InfoDeepNesting: "Statement nesting exceeds depth 3",

	ErrTaintedFlow:         "Labeled value flows to a sink without a matching grant",
	ErrPermissionDenied:    "Operation uses a capability denied by this contract",
	ErrUngrantedSource:     "Read from a source not listed in grants",
	ErrUncheckedCapability: "Required capability is never checked with 'has'",
	ErrUnknownCapability:   "Capability name is not declared in requires or grants",
	ErrGrantDenyConflict:   "Capability appears in both grants and denies",

	ErrMissingReturn:       "Not every path returns a value",
	ErrUnreachableCode:     "Unreachable statement after return",
	ErrMissingOnFailure:    "on_failure section required at this risk level",
	ErrResultWithoutReturn: "Postcondition references 'result' but not every path returns",
	ErrUndeclaredShared:    "Shared state accessed without being listed in effects",

	ErrArgumentType:  "Argument type mismatch",
	ErrReturnType:    "Return type mismatch",
	ErrOperandType:   "Invalid operand types for operator",
	ErrArityMismatch: "Wrong number of arguments",
}

// MessageFor returns the default message for a diagnostic code
func MessageFor(code string) string {
	if msg, ok := Messages[code]; ok {
		return msg
	}
	return "Unknown diagnostic"
}

// PassForCode returns the verification pass that owns a diagnostic code
func PassForCode(code string) string {
	if len(code) == 0 {
		return "unknown"
	}
	switch code[0] {
	case 'E', 'W', 'I':
		return "intent"
	case 'F':
		return "capability"
	case 'V':
		return "contract"
	case 'T':
		return "types"
	default:
		return "unknown"
	}
}

// DefaultSeverity returns the severity a code carries before any
// risk-level escalation is applied.
func DefaultSeverity(code string) Severity {
	if len(code) == 0 {
		return Error
	}
	switch code[0] {
	case 'W':
		return Warning
	case 'I':
		return Info
	default:
		return Error
	}
}
