package rollback

import (
	"github.com/relkit/go-release/taskerrors"
)

// Strategy selects how previously executed tasks are undone after a failure.
type Strategy string

const (
	// StrategyReverse undoes executed tasks in reverse completion order.
	StrategyReverse Strategy = "reverse"

	// StrategyCompensation runs a registered compensation task instead of a
	// task's own undo, falling back to the undo when none is registered.
	StrategyCompensation Strategy = "compensation"

	// StrategyCustom wraps each undo with the task's own rollback hooks.
	StrategyCustom Strategy = "custom"

	// StrategyNone disables rollback.
	StrategyNone Strategy = "none"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyReverse, StrategyCompensation, StrategyCustom, StrategyNone:
		return Strategy(s), nil
	}

	return "", taskerrors.Newf(taskerrors.Validation, "unknown rollback strategy %q", s)
}
