package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/features"
	"github.com/relkit/go-release/journal/sqlite"
	"github.com/relkit/go-release/locator"
	"github.com/relkit/go-release/orchestrator"
	"github.com/relkit/go-release/rollback"
	"github.com/relkit/go-release/task"
)

var otlpEndpoint = flag.String("otlp", "", "OTLP http endpoint for traces, e.g. localhost:4318. Traces go to stdout when unset.")

func main() {
	flag.Parse()

	ctx := context.Background()

	tp, err := tracerProvider(ctx)
	if err != nil {
		stdlog.Fatal(err)
	}
	defer tp.Shutdown(context.Background())

	js, err := sqlite.NewInMemoryStore()
	if err != nil {
		stdlog.Fatal(err)
	}

	services, err := newServices()
	if err != nil {
		stdlog.Fatal(err)
	}

	o := orchestrator.New(
		orchestrator.WithTracerProvider(tp),
		orchestrator.WithJournal(js),
	)

	result, err := o.Run(ctx, orchestrator.RunOptions{
		Name:             "sample release",
		RollbackStrategy: rollback.StrategyReverse,
		Flags: []features.Flag{
			{Name: "publish", Enabled: true},
		},
		Config: map[string]any{
			"version": "", // empty: let the bump task decide
		},
	}, releaseTasks(services))
	if err != nil {
		stdlog.Fatal(err)
	}

	fmt.Println("executed:", result.ExecutedTasks)
	fmt.Println("skipped:", result.SkippedTasks)
	fmt.Println("duration:", result.ExecutionTime)
}

func tracerProvider(ctx context.Context) (*trace.TracerProvider, error) {
	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("go-release sample"),
		semconv.ServiceVersionKey.String("v0.1.0"),
		attribute.String("environment", "sample"),
	)

	opts := []trace.TracerProviderOption{trace.WithResource(r)}

	if *otlpEndpoint != "" {
		oclient := otlptracehttp.NewClient(otlptracehttp.WithEndpoint(*otlpEndpoint), otlptracehttp.WithInsecure())
		exp, err := otlptrace.New(ctx, oclient)
		if err != nil {
			return nil, err
		}

		opts = append(opts, trace.WithBatcher(exp))
	} else {
		stdoutexp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}

		opts = append(opts, trace.WithSyncer(stdoutexp))
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp, nil
}

func newServices() (*locator.Locator, error) {
	return locator.New([]locator.Registration{
		{
			Name: "filesystem",
			Factory: func(r *locator.Resolver) (any, error) {
				return &fakeFilesystem{root: r.BasePath()}, nil
			},
		},
		{
			Name:      "vcs",
			DependsOn: []string{"filesystem"},
			Factory: func(r *locator.Resolver) (any, error) {
				fs, err := r.Service("filesystem")
				if err != nil {
					return nil, err
				}

				return &fakeVcs{fs: fs.(*fakeFilesystem)}, nil
			},
		},
	}, locator.WithBasePath("."))
}

// releaseTasks wires a small release pipeline. Validation routes dynamically
// to one of the two version bump tasks, which route onward to the changelog;
// the unselected bump task never runs.
func releaseTasks(services *locator.Locator) []task.Task {
	return []task.Task{
		task.New("validate",
			task.WithName("Validate worktree"),
			task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
				handles, err := services.Resolve("vcs")
				if err != nil {
					return nil, err
				}

				vcs, err := handles[0].Instance()
				if err != nil {
					return nil, err
				}

				if !vcs.(*fakeVcs).Clean() {
					return nil, fmt.Errorf("worktree is dirty")
				}

				return nil, nil
			}),
			task.WithNextTasks(func(ctx *core.Context) ([]string, error) {
				if v, ok := ctx.Config("version"); ok && v != "" {
					return []string{"set-version"}, nil
				}

				return []string{"auto-bump"}, nil
			}),
		),
		task.New("auto-bump",
			task.WithName("Determine next version"),
			task.WithDependencies("validate"),
			task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
				return ctx.Fork("version", "1.2.0"), nil
			}),
			task.WithNextTasks(func(ctx *core.Context) ([]string, error) {
				return []string{"changelog"}, nil
			}),
		),
		task.New("set-version",
			task.WithName("Use configured version"),
			task.WithDependencies("validate"),
			task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
				v, _ := ctx.Config("version")
				return ctx.Fork("version", v), nil
			}),
			task.WithNextTasks(func(ctx *core.Context) ([]string, error) {
				return []string{"changelog"}, nil
			}),
		),
		task.New("changelog",
			task.WithName("Generate changelog"),
			task.WithDependencies("validate"),
			task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
				v, err := ctx.Get("version")
				if err != nil {
					return nil, err
				}

				return ctx.Fork("changelog", fmt.Sprintf("## %v\n\n- changes\n", v)), nil
			}),
			task.WithUndo(func(ctx *core.Context) error {
				// Nothing written to disk in the sample.
				return nil
			}),
		),
		task.New("tag",
			task.WithName("Create release tag"),
			task.WithDependencies("changelog"),
			task.WithRequiredFeatures("publish"),
			task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
				v, err := ctx.Get("version")
				if err != nil {
					return nil, err
				}

				return ctx.Fork("tag", fmt.Sprintf("v%v", v)), nil
			}),
			task.WithUndo(func(ctx *core.Context) error {
				return nil
			}),
		),
	}
}

type fakeFilesystem struct {
	root string
}

type fakeVcs struct {
	fs *fakeFilesystem
}

func (v *fakeVcs) Clean() bool {
	return true
}
