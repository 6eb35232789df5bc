package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/withObsrvr/stack-deploy-workflow/internal/backup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/cleanup"
	"github.com/withObsrvr/stack-deploy-workflow/internal/config"
	"github.com/withObsrvr/stack-deploy-workflow/internal/report"
	"github.com/withObsrvr/stack-deploy-workflow/internal/run"
	"github.com/withObsrvr/stack-deploy-workflow/pkg/checkpoint"
)

// requiredTools must be on PATH before anything else runs.
var requiredTools = []struct {
	name   string
	remedy string
}{
	{"aws", "install the AWS CLI v2: https://docs.aws.amazon.com/cli/"},
	{"sam", "install the AWS SAM CLI: https://docs.aws.amazon.com/serverless-application-model/"},
}

// ResourceVerifier checks that provisioned storage resources are reachable.
type ResourceVerifier interface {
	VerifyBucket(ctx context.Context, name string) error
	VerifyIndex(ctx context.Context, bucket, index string) error
}

// OutputsResolver fetches the provisioned stack's outputs.
type OutputsResolver interface {
	StackOutputs(ctx context.Context, target string) map[string]string
}

// Uploader puts seed data into the documents bucket.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader) error
}

// DeploymentState is the mutable run state, owned by the pipeline driver
// and passed explicitly rather than read from ambient globals.
type DeploymentState struct {
	Target    string
	Region    string
	AccountID string
	Config    *config.Config
	Outputs   map[string]string
}

// StageDeps carries everything the stage catalogue needs.
type StageDeps struct {
	Runner   run.CommandRunner
	Rep      *report.Reporter
	Store    *checkpoint.Store
	Backup   *backup.Manager
	Verifier ResourceVerifier
	Resolver OutputsResolver
	Uploader Uploader

	// ConfigPath is the deployment configuration document.
	ConfigPath string

	// SetupCommand, when non-empty, is run once to produce a missing
	// configuration document (name followed by arguments).
	SetupCommand []string

	// ProjectDir is the repository containing the infra template and the
	// widget sources.
	ProjectDir string

	// SeedDataDir holds documents to bootstrap into the documents bucket.
	SeedDataDir string

	State *DeploymentState
}

// buildStages assembles the fixed stage catalogue.
func buildStages(d *StageDeps) []stageDef {
	return []stageDef{
		{
			id:           StagePrerequisites,
			precondition: d.toolsPresent,
			action:       d.logToolVersions,
		},
		{
			id:     StageEnvironment,
			action: d.prepareEnvironment,
		},
		{
			id:     StageDependencies,
			action: d.installDependencies,
		},
		{
			id:           StageValidateConfig,
			precondition: d.configPresent,
			remediate:    d.runSetupWizard,
			action:       d.validateConfig,
		},
		{
			id:     StageProvision,
			action: d.provisionInfrastructure,
		},
		{
			id:     StageVerify,
			action: d.verifyResources,
		},
		{
			id:     StageBootstrap,
			action: d.bootstrapData,
		},
		{
			id:     StageFinalize,
			action: d.finalize,
		},
	}
}

func (d *StageDeps) toolsPresent(_ context.Context) *PreconditionError {
	for _, tool := range requiredTools {
		if _, err := d.Runner.LookPath(tool.name); err != nil {
			return &PreconditionError{
				Stage:  StagePrerequisites,
				Reason: fmt.Sprintf("required tool %q not found on PATH", tool.name),
				Remedy: tool.remedy,
			}
		}
	}
	return nil
}

func (d *StageDeps) logToolVersions(ctx context.Context) error {
	for _, tool := range requiredTools {
		result, err := d.Runner.Run(ctx, tool.name, "--version")
		if err != nil {
			return err
		}
		d.Rep.Debugf("%s: %s", tool.name, firstNonEmptyLine(result.Stdout, result.Stderr))
	}
	return nil
}

// prepareEnvironment resolves the region and account identity the rest of
// the run operates against. Both are re-resolved on every run; nothing is
// cached across invocations.
func (d *StageDeps) prepareEnvironment(ctx context.Context) error {
	if d.State.Region == "" {
		d.State.Region = firstNonEmpty(os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"))
	}

	result, err := d.Runner.Run(ctx, "aws", "sts", "get-caller-identity", "--output", "json")
	if err != nil {
		return fmt.Errorf("could not resolve AWS identity: %w", err)
	}

	account := gjson.Get(result.Stdout, "Account").String()
	if account == "" {
		return fmt.Errorf("AWS identity response did not contain an account id")
	}
	d.State.AccountID = account

	d.Rep.Infof("Deploying as account %s (region %s)", account, firstNonEmpty(d.State.Region, "provider default"))
	return nil
}

// installDependencies is safe to re-run: both npm install and sam build
// are no-ops when everything is already in place.
func (d *StageDeps) installDependencies(ctx context.Context) error {
	widgetDir := filepath.Join(d.ProjectDir, "widget")
	if _, err := os.Stat(filepath.Join(widgetDir, "package.json")); err == nil {
		d.Rep.Infof("Installing widget dependencies")
		if _, err := d.Runner.Run(ctx, "npm", "install", "--prefix", widgetDir); err != nil {
			return err
		}
	} else {
		d.Rep.Debugf("No widget package.json, skipping npm install")
	}

	if _, err := os.Stat(filepath.Join(d.ProjectDir, "template.yaml")); err == nil {
		d.Rep.Infof("Building deployment artifacts")
		if _, err := d.Runner.Run(ctx, "sam", "build"); err != nil {
			return err
		}
	} else {
		d.Rep.Debugf("No template.yaml, skipping sam build")
	}

	return nil
}

func (d *StageDeps) configPresent(_ context.Context) *PreconditionError {
	if _, err := os.Stat(d.ConfigPath); os.IsNotExist(err) {
		return &PreconditionError{
			Stage:  StageValidateConfig,
			Reason: fmt.Sprintf("configuration document %s does not exist", d.ConfigPath),
			Remedy: "run the setup wizard to generate one",
		}
	}
	return nil
}

func (d *StageDeps) runSetupWizard(ctx context.Context) error {
	if len(d.SetupCommand) == 0 {
		return fmt.Errorf("no setup wizard configured")
	}
	d.Rep.Infof("Running setup wizard: %v", d.SetupCommand)
	_, err := d.Runner.Run(ctx, d.SetupCommand[0], d.SetupCommand[1:]...)
	return err
}

func (d *StageDeps) validateConfig(_ context.Context) error {
	cfg, err := config.Load(d.ConfigPath)
	if err != nil {
		return err
	}

	d.State.Config = cfg
	if cfg.Region != "" {
		d.State.Region = cfg.Region
	}
	return nil
}

// provisionInfrastructure delegates to the infra tool. The deploy is
// idempotent: an unchanged stack produces an empty changeset, which is not
// an error.
func (d *StageDeps) provisionInfrastructure(ctx context.Context) error {
	args := []string{
		"deploy",
		"--stack-name", d.State.Target,
		"--no-confirm-changeset",
		"--no-fail-on-empty-changeset",
		"--resolve-s3",
		"--capabilities", "CAPABILITY_IAM",
	}
	if d.State.Region != "" {
		args = append(args, "--region", d.State.Region)
	}
	if cfg := d.State.Config; cfg != nil {
		args = append(args, "--parameter-overrides",
			fmt.Sprintf("ModelId=%s", cfg.Model.ID),
			fmt.Sprintf("EmbeddingModelId=%s", cfg.Model.EmbeddingModel),
			fmt.Sprintf("ApiRateLimit=%d", cfg.Throttling.RateLimit),
			fmt.Sprintf("ApiBurstLimit=%d", cfg.Throttling.BurstLimit),
		)
	}

	_, err := d.Runner.Run(ctx, "sam", args...)
	return err
}

func (d *StageDeps) verifyResources(ctx context.Context) error {
	outputs := d.Resolver.StackOutputs(ctx, d.State.Target)
	if len(outputs) == 0 {
		return fmt.Errorf("stack %s has no outputs; was provisioning successful?", d.State.Target)
	}
	d.State.Outputs = outputs

	for _, key := range []string{cleanup.OutputDocumentBucket, cleanup.OutputMetadataBucket} {
		name := outputs[key]
		if name == "" {
			return fmt.Errorf("stack output %s is missing", key)
		}
		if err := d.Verifier.VerifyBucket(ctx, name); err != nil {
			return err
		}
		d.Rep.Infof("Bucket %s is reachable", name)
	}

	vectorBucket := outputs[cleanup.OutputVectorBucket]
	vectorIndex := outputs[cleanup.OutputVectorIndex]
	if vectorBucket == "" || vectorIndex == "" {
		return fmt.Errorf("stack outputs %s/%s are missing", cleanup.OutputVectorBucket, cleanup.OutputVectorIndex)
	}
	if err := d.Verifier.VerifyIndex(ctx, vectorBucket, vectorIndex); err != nil {
		return err
	}
	d.Rep.Infof("Vector index %s/%s is reachable", vectorBucket, vectorIndex)

	return nil
}

// bootstrapData uploads staged seed documents. An empty staging directory
// is a warning, not a failure.
func (d *StageDeps) bootstrapData(ctx context.Context) error {
	entries, err := collectSeedFiles(d.SeedDataDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		d.Rep.Warnf("No staged data in %s; skipping bootstrap", d.SeedDataDir)
		return nil
	}

	bucket := d.State.Outputs[cleanup.OutputDocumentBucket]
	if bucket == "" {
		return fmt.Errorf("documents bucket is unknown; verify stage must run first")
	}

	for _, path := range entries {
		rel, err := filepath.Rel(d.SeedDataDir, path)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open seed file %s: %w", path, err)
		}

		uploadErr := d.Uploader.Upload(ctx, bucket, filepath.ToSlash(rel), file)
		file.Close()
		if uploadErr != nil {
			return uploadErr
		}
		d.Rep.Infof("Uploaded %s", rel)
	}

	d.Rep.Successf("Bootstrapped %d document(s) into %s", len(entries), bucket)
	return nil
}

func (d *StageDeps) finalize(_ context.Context) error {
	endpoint := d.State.Outputs["ApiEndpoint"]

	d.Rep.Successf("Deployment of %s is complete", d.State.Target)
	d.Rep.Infof("Embed the chat widget with:")
	d.Rep.Infof(`  <script src="widget.js" data-endpoint=%q></script>`, endpoint)
	d.Rep.Infof("API endpoint: %s", firstNonEmpty(endpoint, "<not exported by stack>"))
	return nil
}

func collectSeedFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyLine(values ...string) string {
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				return line
			}
		}
	}
	return ""
}
