package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/service/common"
)

const (
	// IgnoreFilename lists files git must not track.
	IgnoreFilename = ".gitignore"
	// SecretsFilename holds the environment variables the package reads at runtime.
	SecretsFilename = ".env"
	// ManifestFilename is the flat dependency manifest.
	ManifestFilename = "requirements.txt"
	// SandboxDirname is the isolated Python runtime of the package.
	SandboxDirname = ".venv"

	launchScriptWindows = "run.bat"
	launchScriptPOSIX   = "run.sh"
	entryPoint          = "main.py"

	scriptFileMode os.FileMode = 0o755
	plainFileMode  os.FileMode = 0o644
)

const ignoreListContents = `.venv/
__pycache__/
*.pyc
*.pyo
*.pyd
.env
/run.BAT
/run.sh
.vscode/
.idea/
*.swp
*.swo
*.bak
*.tmp
*.log
.fleet-version
.requirements_hash
`

const secretsHeader = `# Environment variables
# These are mandatory for the application to run

`

//nolint:gochecknoglobals // Default dependency list of a freshly provisioned package.
var defaultRequirements = []string{
	"python-dotenv",
	"requests",
}

// Bootstrapper provisions a package directory so it can run on its own.
// Every artifact is written only when absent, so Ensure may run on every cycle.
type Bootstrapper struct {
	cfg    *config.Config
	runner common.Runner
}

// New creates a Bootstrapper.
func New(cfg *config.Config, runner common.Runner) *Bootstrapper {
	return &Bootstrapper{
		cfg:    cfg,
		runner: runner,
	}
}

// Ensure provisions dir: ignore list, launch script, sandbox, secrets file and
// dependency manifest, in that order. A failed sandbox creation stops the
// sequence before the secrets file and the manifest. Every failure is a bootstrap error.
func (b *Bootstrapper) Ensure(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, common.DefaultDirMode); err != nil {
		return fleet.Wrap(fleet.KindBootstrap, "create package directory", err)
	}

	steps := []struct {
		name string
		run  func(context.Context, string) error
	}{
		{"ignore list", b.ensureIgnoreList},
		{"launch script", b.ensureLaunchScript},
		{"sandbox", b.ensureSandbox},
		{"secrets file", b.ensureSecrets},
		{"dependency manifest", b.ensureManifest},
	}

	for _, step := range steps {
		if err := step.run(ctx, dir); err != nil {
			return fleet.Wrap(fleet.KindBootstrap, "provision "+step.name, err)
		}
	}

	return nil
}

func (b *Bootstrapper) ensureIgnoreList(ctx context.Context, dir string) error {
	return writeIfAbsent(ctx, filepath.Join(dir, IgnoreFilename), ignoreListContents, plainFileMode)
}

func (b *Bootstrapper) ensureLaunchScript(ctx context.Context, dir string) error {
	if runtime.GOOS == "windows" {
		var script strings.Builder

		script.WriteString("@echo off\r\n")
		fmt.Fprintf(&script, "call \"%s\"\r\n", filepath.Join(dir, SandboxDirname, "Scripts", "activate.bat"))
		fmt.Fprintf(&script, "python \"%s\" %%*\r\n", filepath.Join(dir, entryPoint))
		script.WriteString("deactivate\r\n")

		return writeIfAbsent(ctx, filepath.Join(dir, launchScriptWindows), script.String(), scriptFileMode)
	}

	var script strings.Builder

	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, ". \"%s\"\n", filepath.Join(dir, SandboxDirname, "bin", "activate"))
	fmt.Fprintf(&script, "python \"%s\" \"$@\"\n", filepath.Join(dir, entryPoint))
	script.WriteString("deactivate\n")

	return writeIfAbsent(ctx, filepath.Join(dir, launchScriptPOSIX), script.String(), scriptFileMode)
}

// ensureSandbox creates the virtual environment unless a non-empty one exists.
func (b *Bootstrapper) ensureSandbox(ctx context.Context, dir string) error {
	sandbox := filepath.Join(dir, SandboxDirname)

	entries, err := os.ReadDir(sandbox)
	if err == nil && len(entries) > 0 {
		logger.DebugKV(ctx, "Sandbox already exists", "path", sandbox)
		return nil
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	logger.InfoKV(ctx, "Creating sandbox", "path", sandbox)

	if _, err = b.runner.Run(ctx, dir, b.cfg.PythonExecutable, "-m", "venv", SandboxDirname); err != nil {
		return err
	}

	return nil
}

func (b *Bootstrapper) ensureSecrets(ctx context.Context, dir string) error {
	var contents strings.Builder

	contents.WriteString(secretsHeader)
	fmt.Fprintf(&contents, "GITHUB_TOKEN=%s\n", b.cfg.Token)
	fmt.Fprintf(&contents, "BASE_DIRECTORY=%s\n", b.cfg.RootDirectory)
	fmt.Fprintf(&contents, "GITHUB_USERNAME=%s\n", b.cfg.Owner)

	keys := make([]string, 0, len(b.cfg.Secrets))
	for key := range b.cfg.Secrets {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(&contents, "%s='%s'\n", strings.ToUpper(key), b.cfg.Secrets[key])
	}

	return writeIfAbsent(ctx, filepath.Join(dir, SecretsFilename), contents.String(), config.DefaultFilePermissions)
}

func (b *Bootstrapper) ensureManifest(ctx context.Context, dir string) error {
	contents := strings.Join(defaultRequirements, "\n") + "\n"

	return writeIfAbsent(ctx, filepath.Join(dir, ManifestFilename), contents, plainFileMode)
}

// SandboxPython returns the interpreter inside the sandbox of the package in dir.
func SandboxPython(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, SandboxDirname, "Scripts", "python.exe")
	}

	return filepath.Join(dir, SandboxDirname, "bin", "python")
}

// writeIfAbsent creates path with contents unless it already exists.
// O_EXCL makes the existence check and the creation a single step.
func writeIfAbsent(ctx context.Context, path, contents string, mode os.FileMode) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			logger.DebugKV(ctx, "File already exists", "path", path)
			return nil
		}

		return err
	}

	if _, err = file.WriteString(contents); err != nil {
		_ = file.Close()
		_ = os.Remove(path)

		return err
	}

	if err = file.Close(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Created file", "path", path)

	return nil
}
