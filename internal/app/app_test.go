package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rnaflow/internal/adapters/cas"
	"go.trai.ch/rnaflow/internal/adapters/fs"
	"go.trai.ch/rnaflow/internal/adapters/table"
	"go.trai.ch/rnaflow/internal/app"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports/mocks"
	"go.trai.ch/rnaflow/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

const (
	configPath   = "config.yaml"
	pipelinePath = "rnaflow.yaml"
)

var loadOpts = app.LoadOptions{ConfigPath: configPath, PipelinePath: pipelinePath}

type appTestEnv struct {
	root     string
	loader   *mocks.MockConfigLoader
	executor *mocks.MockExecutor
	logger   *mocks.MockLogger
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	app      *app.App
}

func setupAppTest(t *testing.T) *appTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	env := &appTestEnv{
		root:     t.TempDir(),
		loader:   mocks.NewMockConfigLoader(ctrl),
		executor: mocks.NewMockExecutor(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
		stdout:   new(bytes.Buffer),
		stderr:   new(bytes.Buffer),
	}
	env.app = app.New(
		env.loader,
		env.executor,
		env.logger,
		cas.NewStore(),
		fs.NewHasher(),
		fs.NewResolver(),
		fs.NewVerifier(fs.NewWalker()),
		mocks.NewMockOutputChecker(ctrl),
	).WithOutput(env.stdout, env.stderr)
	return env
}

// expectLoad serves a two task pipeline: index -> align.
func (e *appTestEnv) expectLoad(t *testing.T) *domain.Graph {
	t.Helper()
	seed := int64(1)
	cfg := &domain.RunConfig{
		WorkDir: e.root,
		Threads: 2,
		Seed:    &seed,
		Samples: []domain.Sample{{Name: "S1", R1: "S1_1.fq", R2: "S1_2.fq"}},
	}

	g := domain.NewGraph()
	g.SetRoot(e.root)
	require.NoError(t, g.AddTask(&domain.Task{
		Name:    domain.NewInternedString("index"),
		Rule:    domain.NewInternedString("index"),
		Command: []string{"build-index"},
		Inputs:  domain.NewInternedStrings([]string{"ref.fa"}),
		Outputs: domain.NewInternedStrings([]string{"index/ref.idx"}),
	}))
	require.NoError(t, g.AddTask(&domain.Task{
		Name:    domain.NewInternedString("align[sample=S1]"),
		Rule:    domain.NewInternedString("align"),
		Command: []string{"align"},
		Inputs:  domain.NewInternedStrings([]string{"index/ref.idx", "S1_1.fq"}),
		Outputs: domain.NewInternedStrings([]string{"aligned/S1.bam"}),
	}))

	e.loader.EXPECT().LoadRunConfig(configPath).Return(cfg, nil).AnyTimes()
	e.loader.EXPECT().Load(pipelinePath, cfg).Return(g, nil).AnyTimes()
	return g
}

func (e *appTestEnv) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

func (e *appTestEnv) produce() {
	e.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, task *domain.Task, _ []string, stdout, _ io.Writer) error {
			_, _ = fmt.Fprintf(stdout, "hello from %s\n", task.Name)
			for _, out := range task.OutputPaths() {
				if err := os.WriteFile(filepath.Join(task.WorkingDir.String(), out), []byte("x"), domain.FilePerm); err != nil {
					return err
				}
			}
			return nil
		},
	).AnyTimes()
}

func TestApp_Run(t *testing.T) {
	env := setupAppTest(t)
	env.expectLoad(t)
	env.writeFile(t, "ref.fa", ">chr1\n")
	env.writeFile(t, "S1_1.fq", "@r\n")
	env.produce()

	gomock.InOrder(
		env.logger.EXPECT().Info("2 completed"),
		env.logger.EXPECT().Info("2 up to date"),
	)

	opts := app.RunOptions{LoadOptions: loadOpts}
	require.NoError(t, env.app.Run(context.Background(), []string{"all"}, opts))

	assert.Contains(t, env.stdout.String(), "[index] hello from index")
	assert.Contains(t, env.stdout.String(), "[align[sample=S1]] hello from align[sample=S1]")
	assert.Contains(t, env.stderr.String(), "Planning 2 task(s) for target(s): all")
	assert.Contains(t, env.stderr.String(), "Completed in")

	require.NoError(t, env.app.Run(context.Background(), []string{"align"}, opts))
	assert.Contains(t, env.stderr.String(), "Up to date")
}

func TestApp_Run_NoTargets(t *testing.T) {
	env := setupAppTest(t)
	env.expectLoad(t)

	err := env.app.Run(context.Background(), nil, app.RunOptions{LoadOptions: loadOpts})
	require.ErrorIs(t, err, domain.ErrNoTargetsSpecified)
}

func TestApp_Run_ConfigLoaderError(t *testing.T) {
	env := setupAppTest(t)
	env.loader.EXPECT().LoadRunConfig(configPath).Return(nil, domain.ErrConfigInvalid)

	err := env.app.Run(context.Background(), []string{"all"}, app.RunOptions{LoadOptions: loadOpts})
	require.ErrorContains(t, err, "failed to load run configuration")
	require.ErrorContains(t, err, domain.ErrConfigInvalid.Error())
}

func TestApp_Run_BuildExecutionFailed(t *testing.T) {
	env := setupAppTest(t)
	env.expectLoad(t)
	env.writeFile(t, "ref.fa", ">chr1\n")
	env.writeFile(t, "S1_1.fq", "@r\n")

	env.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("exit status 1"))
	env.logger.EXPECT().Info("1 failed, 1 skipped")
	env.logger.EXPECT().Error(gomock.Any())

	err := env.app.Run(context.Background(), []string{"all"}, app.RunOptions{LoadOptions: loadOpts, Jobs: 1})
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	require.ErrorContains(t, err, "exit status 1")
	assert.Contains(t, env.stderr.String(), "Failed after")
}

func TestApp_Plan(t *testing.T) {
	env := setupAppTest(t)
	env.expectLoad(t)
	env.writeFile(t, "ref.fa", ">chr1\n")
	env.writeFile(t, "S1_1.fq", "@r\n")

	plan, err := env.app.Plan(context.Background(), nil, app.PlanOptions{LoadOptions: loadOpts})
	require.NoError(t, err)
	assert.Equal(t, []scheduler.PlanEntry{
		{Task: "index", Rule: "index", Reason: domain.ReasonMissingOutput},
		{Task: "align[sample=S1]", Rule: "align", Reason: domain.ReasonUpstream},
	}, plan)

	plan, err = env.app.Plan(context.Background(), []string{"index"}, app.PlanOptions{LoadOptions: loadOpts, Force: true})
	require.NoError(t, err)
	assert.Equal(t, []scheduler.PlanEntry{
		{Task: "index", Rule: "index", Reason: domain.ReasonForced},
	}, plan)
}

func TestApp_Validate(t *testing.T) {
	env := setupAppTest(t)
	env.expectLoad(t)
	env.writeFile(t, "ref.fa", ">chr1\n")

	env.logger.EXPECT().Warn("align[sample=S1]: input S1_1.fq does not exist and no task produces it")

	report, err := env.app.Validate(context.Background(), loadOpts)
	require.ErrorContains(t, err, domain.ErrUnsatisfiableInput.Error())
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Tasks)
	assert.Equal(t, []string{"align", "index"}, report.Rules)
	assert.Equal(t, []string{"S1"}, report.Samples)
	require.Len(t, report.Unsatisfied, 1)
	assert.Equal(t, "S1_1.fq", report.Unsatisfied[0].Path)

	env.writeFile(t, "S1_1.fq", "@r\n")
	report, err = env.app.Validate(context.Background(), loadOpts)
	require.NoError(t, err)
	assert.Empty(t, report.Unsatisfied)
}

func TestApp_Validate_Cycle(t *testing.T) {
	env := setupAppTest(t)
	cfg := &domain.RunConfig{WorkDir: env.root, Threads: 1}
	g := domain.NewGraph()
	g.SetRoot(env.root)
	require.NoError(t, g.AddTask(&domain.Task{
		Name:    domain.NewInternedString("a"),
		Command: []string{"a"},
		Inputs:  domain.NewInternedStrings([]string{"y"}),
		Outputs: domain.NewInternedStrings([]string{"x"}),
	}))
	require.NoError(t, g.AddTask(&domain.Task{
		Name:    domain.NewInternedString("b"),
		Command: []string{"b"},
		Inputs:  domain.NewInternedStrings([]string{"x"}),
		Outputs: domain.NewInternedStrings([]string{"y"}),
	}))
	env.loader.EXPECT().LoadRunConfig(configPath).Return(cfg, nil).AnyTimes()
	env.loader.EXPECT().Load(pipelinePath, cfg).Return(g, nil).AnyTimes()

	_, err := env.app.Validate(context.Background(), loadOpts)
	require.ErrorContains(t, err, domain.ErrCycleDetected.Error())

	err = env.app.Clean(context.Background(), app.CleanOptions{LoadOptions: loadOpts, Outputs: true})
	require.ErrorContains(t, err, domain.ErrCycleDetected.Error())
}

func TestApp_Clean(t *testing.T) {
	env := setupAppTest(t)
	env.expectLoad(t)
	env.writeFile(t, "ref.fa", ">chr1\n")
	env.writeFile(t, filepath.Join(domain.DefaultStorePath(), "index.json"), "{}")
	env.writeFile(t, "index/ref.idx", "idx")

	env.logger.EXPECT().Info("removed run records and logs")
	require.NoError(t, env.app.Clean(context.Background(), app.CleanOptions{LoadOptions: loadOpts}))
	assert.NoDirExists(t, filepath.Join(env.root, domain.DefaultStatePath()))
	assert.FileExists(t, filepath.Join(env.root, "index/ref.idx"))

	env.logger.EXPECT().Info("removed index/ref.idx")
	require.NoError(t, env.app.Clean(context.Background(), app.CleanOptions{LoadOptions: loadOpts, Outputs: true}))
	assert.NoFileExists(t, filepath.Join(env.root, "index/ref.idx"))
	assert.FileExists(t, filepath.Join(env.root, "ref.fa"))
}

func TestApp_DGE(t *testing.T) {
	env := setupAppTest(t)
	dir := t.TempDir()

	counts := &domain.CountTable{Samples: []string{"ctrl_1", "ctrl_2", "kd_1", "kd_2"}}
	for i := range 12 {
		base := float64(300 + 41*i)
		counts.FeatureIDs = append(counts.FeatureIDs, fmt.Sprintf("g%02d", i))
		counts.Counts = append(counts.Counts, []float64{base + 12, base - 10, base - 8, base + 14})
	}
	counts.FeatureIDs = append(counts.FeatureIDs, "g_up", "g_off")
	counts.Counts = append(counts.Counts, []float64{600, 640, 2500, 2400}, []float64{0, 0, 0, 0})
	require.NoError(t, table.WriteCountsFile(filepath.Join(dir, "counts.tsv"), counts))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "design.tsv"),
		[]byte("sample\tcondition\nctrl_1\tctrl\nctrl_2\tctrl\nkd_1\tkd\nkd_2\tkd\n"), domain.FilePerm))

	out := filepath.Join(dir, "de", "results.tsv")
	env.logger.EXPECT().Info(gomock.Any())

	summary, err := env.app.DGE(context.Background(), app.DGEOptions{
		CountsPath: filepath.Join(dir, "counts.tsv"),
		DesignPath: filepath.Join(dir, "design.tsv"),
		OutPath:    out,
		Contrast:   "condition,kd,ctrl",
	})
	require.NoError(t, err)
	assert.Equal(t, 14, summary.Features)
	assert.Equal(t, 13, summary.Tested)

	results, err := table.ReadResultsFile(out)
	require.NoError(t, err)
	require.Len(t, results, 14)
	assert.Equal(t, "g_up", results[12].FeatureID)
	assert.Greater(t, results[12].Log2FoldChange, 1.5)
}

func TestApp_DGE_MissingFile(t *testing.T) {
	env := setupAppTest(t)
	_, err := env.app.DGE(context.Background(), app.DGEOptions{
		CountsPath: filepath.Join(env.root, "missing.tsv"),
		DesignPath: filepath.Join(env.root, "design.tsv"),
		OutPath:    filepath.Join(env.root, "out.tsv"),
		Contrast:   "condition,kd,ctrl",
	})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(env.root, "out.tsv"))
}
