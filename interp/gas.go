package interp

import (
	"fmt"

	"github.com/fluxionlabs/fluxion/model"
)

// GasScheduleVersion identifies the per-op cost table below. Changing any
// cost changes the observable exhaustion point of existing contracts, so the
// table is versioned alongside the contract format.
const GasScheduleVersion = 1

// costBlockDispatch is charged every time control enters a block, including
// self-referential SetNextBlock loops. It guarantees that any loop burns gas
// even when its body is pure control flow.
const costBlockDispatch uint64 = 2

var opCosts = map[model.Op]uint64{
	model.OpLiteral:          1,
	model.OpSequence:         1,
	model.OpIf:               1,
	model.OpEvaluate:         5,
	model.OpAwait:            3,
	model.OpSetNextBlock:     1,
	model.OpTerminate:        0,
	model.OpPushErrorHandler: 1,
	model.OpPopErrorHandler:  1,
	model.OpAdd:              1,
	model.OpLessThan:         1,
	model.OpLength:           1,
}

// GasExhaustedError terminates a run unconditionally; it is never routed to
// error handler blocks, since running a handler would itself need gas.
type GasExhaustedError struct {
	Limit   uint64
	BlockID string
}

func (e GasExhaustedError) Error() string {
	return fmt.Sprintf("gas exhausted (limit %d) at block %q", e.Limit, e.BlockID)
}

func (in *Interpreter) charge(cost uint64) error {
	if in.gas < cost {
		in.gas = 0
		return GasExhaustedError{Limit: in.initialGas, BlockID: in.curBlock}
	}
	in.gas -= cost
	return nil
}
