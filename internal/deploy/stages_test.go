package deploy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/stack-deploy-workflow/internal/backup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/cleanup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/run"
)

// fakeRunner is a scripted CommandRunner.
type fakeRunner struct {
	calls   []string
	missing map[string]bool
	failOn  string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (run.Result, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmd)

	if f.failOn != "" && strings.Contains(cmd, f.failOn) {
		return run.Result{ExitCode: 1, Stderr: "injected failure"}, errors.New("injected failure")
	}
	if strings.Contains(cmd, "get-caller-identity") {
		return run.Result{Stdout: `{"Account": "123456789012", "Arn": "arn:aws:iam::123456789012:user/ci"}`}, nil
	}
	if strings.HasSuffix(cmd, "--version") {
		return run.Result{Stdout: name + " 1.0.0"}, nil
	}
	return run.Result{}, nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", errors.New(name + " not found")
	}
	return "/usr/local/bin/" + name, nil
}

type fakeVerifier struct {
	buckets []string
	indexes []string
	fail    bool
}

func (f *fakeVerifier) VerifyBucket(_ context.Context, name string) error {
	if f.fail {
		return errors.New("unreachable")
	}
	f.buckets = append(f.buckets, name)
	return nil
}

func (f *fakeVerifier) VerifyIndex(_ context.Context, bucket, index string) error {
	if f.fail {
		return errors.New("unreachable")
	}
	f.indexes = append(f.indexes, bucket+"/"+index)
	return nil
}

type fakeResolver struct {
	outputs map[string]string
}

func (f *fakeResolver) StackOutputs(context.Context, string) map[string]string {
	return f.outputs
}

type fakeUploader struct {
	uploads map[string]string // key -> bucket
}

func (f *fakeUploader) Upload(_ context.Context, bucket, key string, _ io.Reader) error {
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[key] = bucket
	return nil
}

func testDeps(t *testing.T, runner *fakeRunner) *StageDeps {
	t.Helper()

	rep := newTestReporter(t)
	return &StageDeps{
		Runner:      runner,
		Rep:         rep,
		Store:       newTestStore(t),
		Backup:      backup.NewManager(t.TempDir(), rep),
		Verifier:    &fakeVerifier{},
		Resolver:    &fakeResolver{},
		Uploader:    &fakeUploader{},
		ConfigPath:  filepath.Join(t.TempDir(), "deploy-config.yaml"),
		ProjectDir:  t.TempDir(),
		SeedDataDir: filepath.Join(t.TempDir(), "seed"),
		State:       &DeploymentState{Target: "chatbot-test"},
	}
}

func TestToolsPresent_MissingToolNamesRemedy(t *testing.T) {
	runner := &fakeRunner{missing: map[string]bool{"sam": true}}
	deps := testDeps(t, runner)

	preErr := deps.toolsPresent(context.Background())
	require.NotNil(t, preErr)
	assert.Contains(t, preErr.Reason, "sam")
	assert.NotEmpty(t, preErr.Remedy)
}

func TestPrepareEnvironment_ResolvesAccount(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})

	require.NoError(t, deps.prepareEnvironment(context.Background()))
	assert.Equal(t, "123456789012", deps.State.AccountID)
}

func TestValidateConfig_LoadsDocumentIntoState(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})
	require.NoError(t, os.WriteFile(deps.ConfigPath, []byte(`
region: eu-west-1
model: {id: m1, embedding_model: e1}
storage: {tier: on-demand, table_capacity: 5}
throttling: {rate_limit: 10, burst_limit: 20}
theme: {primary_color: "#fff000", title: Chat}
`), 0600))

	require.NoError(t, deps.validateConfig(context.Background()))
	require.NotNil(t, deps.State.Config)
	assert.Equal(t, "eu-west-1", deps.State.Region, "config region overrides environment")
}

func TestValidateConfig_RejectsIncompleteDocument(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})
	require.NoError(t, os.WriteFile(deps.ConfigPath, []byte("region: us-east-1\n"), 0600))

	err := deps.validateConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme")
}

func TestProvision_PassesTargetAndIdempotencyFlags(t *testing.T) {
	runner := &fakeRunner{}
	deps := testDeps(t, runner)
	deps.State.Region = "us-east-1"

	require.NoError(t, deps.provisionInfrastructure(context.Background()))

	require.Len(t, runner.calls, 1)
	cmd := runner.calls[0]
	assert.Contains(t, cmd, "sam deploy")
	assert.Contains(t, cmd, "--stack-name chatbot-test")
	assert.Contains(t, cmd, "--no-fail-on-empty-changeset")
}

func TestVerifyResources_ChecksBucketsAndIndex(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})
	verifier := &fakeVerifier{}
	deps.Verifier = verifier
	deps.Resolver = &fakeResolver{outputs: map[string]string{
		cleanup.OutputDocumentBucket: "docs-1",
		cleanup.OutputMetadataBucket: "meta-1",
		cleanup.OutputVectorBucket:   "vb-1",
		cleanup.OutputVectorIndex:    "idx-1",
	}}

	require.NoError(t, deps.verifyResources(context.Background()))
	assert.ElementsMatch(t, []string{"docs-1", "meta-1"}, verifier.buckets)
	assert.Equal(t, []string{"vb-1/idx-1"}, verifier.indexes)
	assert.Equal(t, "docs-1", deps.State.Outputs[cleanup.OutputDocumentBucket])
}

func TestVerifyResources_MissingOutputs(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})
	deps.Resolver = &fakeResolver{outputs: map[string]string{}}

	err := deps.verifyResources(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no outputs")
}

func TestBootstrapData_SkipsWhenNothingStaged(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})
	uploader := &fakeUploader{}
	deps.Uploader = uploader

	// Seed directory does not exist at all.
	require.NoError(t, deps.bootstrapData(context.Background()))
	assert.Empty(t, uploader.uploads)
}

func TestBootstrapData_UploadsStagedFiles(t *testing.T) {
	deps := testDeps(t, &fakeRunner{})
	uploader := &fakeUploader{}
	deps.Uploader = uploader
	deps.State.Outputs = map[string]string{cleanup.OutputDocumentBucket: "docs-1"}

	require.NoError(t, os.MkdirAll(filepath.Join(deps.SeedDataDir, "faq"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(deps.SeedDataDir, "intro.md"), []byte("hi"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(deps.SeedDataDir, "faq", "shipping.md"), []byte("faq"), 0600))

	require.NoError(t, deps.bootstrapData(context.Background()))

	assert.Equal(t, "docs-1", uploader.uploads["intro.md"])
	assert.Equal(t, "docs-1", uploader.uploads["faq/shipping.md"])
	assert.Len(t, uploader.uploads, 2)
}

func TestFullPipeline_WithConfigWizardRemediation(t *testing.T) {
	runner := &fakeRunner{}
	deps := testDeps(t, runner)
	deps.Resolver = &fakeResolver{outputs: map[string]string{
		cleanup.OutputDocumentBucket: "docs-1",
		cleanup.OutputMetadataBucket: "meta-1",
		cleanup.OutputVectorBucket:   "vb-1",
		cleanup.OutputVectorIndex:    "idx-1",
		"ApiEndpoint":                "https://api.example.com",
	}}

	// The wizard produces the config document when the precondition fails.
	deps.SetupCommand = []string{"true"}
	wizardRan := false
	runnerWithWizard := &wizardRunner{fakeRunner: runner, onWizard: func() {
		wizardRan = true
		err := os.WriteFile(deps.ConfigPath, []byte(`
region: us-east-1
model: {id: m1, embedding_model: e1}
storage: {tier: on-demand, table_capacity: 5}
throttling: {rate_limit: 10, burst_limit: 20}
theme: {primary_color: "#fff000", title: Chat}
`), 0600)
		require.NoError(t, err)
	}}
	deps.Runner = runnerWithWizard

	p := NewPipeline(deps)
	require.NoError(t, p.Run(context.Background(), StagePrerequisites))
	assert.True(t, wizardRan, "wizard remediation should have produced the config")

	// Successful full run leaves no checkpoint.
	_, err := deps.Store.Load()
	require.Error(t, err)
}

// wizardRunner intercepts the setup wizard invocation.
type wizardRunner struct {
	*fakeRunner
	onWizard func()
}

func (w *wizardRunner) Run(ctx context.Context, name string, args ...string) (run.Result, error) {
	if name == "true" {
		w.onWizard()
		return run.Result{}, nil
	}
	return w.fakeRunner.Run(ctx, name, args...)
}
