package p

// Work around module issues. The analyzer just looks for `*core.Context` currently
import (
	core "context"
	"fmt"
)

func execute(ctx *core.Context) error {
	return nil
}

func executeWithContext(ctx *core.Context) (*core.Context, error) {
	return nil, nil
}

func executeWithTooManyResults(ctx *core.Context) (*core.Context, string, error) { // want "task \"executeWithTooManyResults\" returns more than two values"
	return nil, "", nil
}

func executeWrongOrder(ctx *core.Context) (error, *core.Context) { // want "task \"executeWrongOrder\" doesn't return `error` as last return value"
	return nil, nil
}

func executeWrongFirst(ctx *core.Context) (string, error) { // want "task \"executeWrongFirst\" doesn't return `\\*core.Context` as first return value"
	return "", nil
}

func executeWithoutReturn(ctx *core.Context) { // want "task \"executeWithoutReturn\" doesn't return anything. needs to return at least `error`"
}

func executeIteratingOverMap(ctx *core.Context) error {
	x := make(map[string]string)

	fmt.Println("log")

	for _, v := range x { // want "iterating over a map is not deterministic and not allowed in tasks"
		if v == "a" {
			return nil
		}
	}

	return nil
}

func executeUsingGoRoutine(ctx *core.Context) error {
	go func() { // want "starting goroutines in tasks is not allowed"
		fmt.Println("hello")
	}()

	return nil
}
