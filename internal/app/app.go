// Package app implements the application layer for rnaflow.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/rnaflow/internal/adapters/linear"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/rnaflow/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     ports.Executor
	logger       ports.Logger
	store        ports.RunRecordStore
	hasher       ports.Hasher
	resolver     ports.InputResolver
	verifier     ports.Verifier
	checker      ports.OutputChecker

	stdout io.Writer
	stderr io.Writer
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	executor ports.Executor,
	log ports.Logger,
	store ports.RunRecordStore,
	hasher ports.Hasher,
	resolver ports.InputResolver,
	verifier ports.Verifier,
	checker ports.OutputChecker,
) *App {
	return &App{
		configLoader: loader,
		executor:     executor,
		logger:       log,
		store:        store,
		hasher:       hasher,
		resolver:     resolver,
		verifier:     verifier,
		checker:      checker,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

// WithOutput redirects task output and run progress.
// This is primarily used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// LoadOptions locates the run configuration and the pipeline definition.
type LoadOptions struct {
	ConfigPath   string
	PipelinePath string
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.ConfigPath == "" {
		o.ConfigPath = domain.RunConfigFileName
	}
	if o.PipelinePath == "" {
		o.PipelinePath = domain.PipelineFileName
	}
	return o
}

// load reads the run configuration and materializes the pipeline into a validated graph.
func (a *App) load(opts LoadOptions) (*domain.RunConfig, *domain.Graph, error) {
	opts = opts.withDefaults()

	cfg, err := a.configLoader.LoadRunConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load run configuration")
	}
	graph, err := a.configLoader.Load(opts.PipelinePath, cfg)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load pipeline")
	}
	if err := graph.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, graph, nil
}

func (a *App) newScheduler(tracer ports.Tracer) *scheduler.Scheduler {
	return scheduler.NewScheduler(
		a.executor,
		a.store,
		a.hasher,
		a.resolver,
		a.verifier,
		a.checker,
		tracer,
	)
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	LoadOptions
	// Jobs overrides the thread budget of the run configuration when positive.
	Jobs  int
	Force bool
}

// Run executes the pipeline for the specified targets.
func (a *App) Run(ctx context.Context, targetNames []string, opts RunOptions) error {
	// 1. Load the graph
	cfg, graph, err := a.load(opts.LoadOptions)
	if err != nil {
		return err
	}

	// 2. Validate targets
	if len(targetNames) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	if _, err := graph.ResolveTargets(targetNames); err != nil {
		return err
	}

	budget := cfg.Threads
	if opts.Jobs > 0 {
		budget = opts.Jobs
	}

	// 3. Initialize renderer and telemetry
	renderer := linear.NewRenderer(a.stdout, a.stderr)
	tp := setupOTel(telemetry.NewBridge(renderer))
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracer(telemetry.InstrumentationName).WithRenderer(renderer)

	// 4. Run renderer and scheduler concurrently
	sched := a.newScheduler(tracer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	var runErr error
	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()
		runErr = sched.Run(ctx, graph, targetNames, scheduler.Options{
			Parallelism: budget,
			Force:       opts.Force,
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info(summarize(sched.Statuses()))
	if runErr != nil {
		a.logger.Error(runErr)
		return errors.Join(domain.ErrBuildExecutionFailed, runErr)
	}
	return nil
}

// summarize counts the statuses of a run, e.g. "3 completed, 2 up to date, 1 failed".
func summarize(statuses map[string]domain.TaskStatus) string {
	counts := make(map[domain.TaskStatus]int)
	for _, status := range statuses {
		counts[status]++
	}

	var parts []string
	for _, status := range []domain.TaskStatus{
		domain.StatusCompleted,
		domain.StatusUpToDate,
		domain.StatusFailed,
		domain.StatusSkipped,
		domain.StatusPending,
	} {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(string(status), "-", " ")))
		}
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}

// PlanOptions configuration for the Plan method.
type PlanOptions struct {
	LoadOptions
	Force bool
}

// Plan lists the tasks a run of targetNames would execute, with the reason for each.
func (a *App) Plan(_ context.Context, targetNames []string, opts PlanOptions) ([]scheduler.PlanEntry, error) {
	_, graph, err := a.load(opts.LoadOptions)
	if err != nil {
		return nil, err
	}
	if len(targetNames) == 0 {
		targetNames = []string{domain.AllTarget}
	}

	tracer := telemetry.NewOTelTracer(telemetry.InstrumentationName)
	return a.newScheduler(tracer).Plan(graph, targetNames, opts.Force)
}

// Report is the outcome of validating a pipeline.
type Report struct {
	Tasks       int
	Rules       []string
	Samples     []string
	Unsatisfied []domain.UnsatisfiedInput
}

// Validate loads the configuration and the graph and lists inputs that neither exist
// nor are produced by any task.
func (a *App) Validate(_ context.Context, opts LoadOptions) (*Report, error) {
	cfg, graph, err := a.load(opts)
	if err != nil {
		return nil, err
	}
	root := graph.Root()

	report := &Report{Tasks: graph.TaskCount(), Samples: cfg.SampleNames()}
	for task := range graph.Walk() {
		if rule := task.Rule.String(); rule != "" && !slices.Contains(report.Rules, rule) {
			report.Rules = append(report.Rules, rule)
		}
	}
	slices.Sort(report.Rules)

	report.Unsatisfied = graph.Unsatisfied(func(path string) bool {
		_, err := a.resolver.ResolveInputs([]string{path}, root)
		return err == nil
	})
	for _, missing := range report.Unsatisfied {
		a.logger.Warn(fmt.Sprintf("%s: input %s does not exist and no task produces it", missing.Task, missing.Path))
	}
	if len(report.Unsatisfied) > 0 {
		return report, zerr.With(domain.ErrUnsatisfiableInput, "count", len(report.Unsatisfied))
	}
	return report, nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	LoadOptions
	// Outputs also removes every output declared by the pipeline.
	Outputs bool
}

// Clean removes the run records and task logs and, optionally, all declared outputs.
func (a *App) Clean(_ context.Context, opts CleanOptions) error {
	_, graph, err := a.load(opts.LoadOptions)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(graph.Root())
	if err != nil {
		return zerr.Wrap(err, domain.ErrFailedToGetRoot.Error())
	}

	var errs error

	// Helper to remove a path and log the action
	remove := func(path string, name string) {
		if _, statErr := os.Lstat(path); errors.Is(statErr, os.ErrNotExist) {
			return
		}
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove "+name), "path", path))
			return
		}
		a.logger.Info("removed " + name)
	}

	remove(filepath.Join(root, domain.DefaultStatePath()), "run records and logs")

	if opts.Outputs {
		for task := range graph.Walk() {
			for _, out := range task.OutputPaths() {
				path := out
				if !filepath.IsAbs(path) {
					path = filepath.Join(root, path)
				}
				rel, err := filepath.Rel(root, path)
				if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
					errs = errors.Join(errs, zerr.With(domain.ErrOutputPathOutsideRoot, "file", out))
					continue
				}
				remove(path, out)
			}
		}
	}

	return errs
}

// setupOTel configures the OpenTelemetry SDK with the renderer bridge.
func setupOTel(bridge *telemetry.Bridge) *sdktrace.TracerProvider {
	// Create a new TracerProvider with the bridge as a SpanProcessor.
	// This ensures that all started spans are reported to the renderer.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)

	// Register it as the global provider.
	otel.SetTracerProvider(tp)
	return tp
}
