// nolint
package q

import (
	core "context"
)

func executeWrongOrder2(ctx *core.Context) (error, string) { // want "task \"executeWrongOrder2\" doesn't return `error` as last return value"
	return nil, ""
}
