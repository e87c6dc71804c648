package diag

import "fmt"

type Code uint16

// Codegen diagnostic codes. The 4xxx block belongs to the backend; lower
// blocks are reserved for upstream phases so span-keyed reports from all
// phases can be merged into one bag.
const (
	UnknownCode Code = 0

	// identifier / path resolution
	GenUnknownIdent    Code = 4001
	GenUnresolvedPath  Code = 4002
	GenUnknownField    Code = 4003
	GenUnknownMethod   Code = 4004
	GenUnknownFunction Code = 4005
	GenUnknownType     Code = 4006
	GenUnknownVariant  Code = 4007

	// arity / shape errors
	GenWrongArgCount  Code = 4101
	GenWrongTypeArgs  Code = 4102
	GenBadAssignment  Code = 4103
	GenBadTupleIndex  Code = 4104
	GenBadFieldAccess Code = 4105

	// operator / cast errors
	GenInvalidCast     Code = 4201
	GenInvalidOperator Code = 4202
	GenMixedOperands   Code = 4203

	// construction errors
	GenBadStructLiteral Code = 4301
	GenBadClassNew      Code = 4302

	// control-flow lowering
	GenTryOutsideResult Code = 4401
)

func (c Code) String() string {
	return fmt.Sprintf("TML%04d", uint16(c))
}
