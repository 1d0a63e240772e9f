// Module plugin for golangci-lint
package plugin

import (
	"github.com/golangci/plugin-module-register/register"
	"github.com/relkit/go-release/analyzer"
	"golang.org/x/tools/go/analysis"
)

func init() {
	register.Plugin("goreleasetasks", New)
}

func New(settings any) (register.LinterPlugin, error) {
	return &taskPlugin{}, nil
}

type taskPlugin struct{}

func (*taskPlugin) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	return []*analysis.Analyzer{
		analyzer.Analyzer,
	}, nil
}

func (*taskPlugin) GetLoadMode() string {
	return register.LoadModeTypesInfo
}
