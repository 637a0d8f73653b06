package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"transcribe/internal/logging"
	"transcribe/internal/services"
	"transcribe/internal/whisperx"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// EnginePackage is the pip requirement installed into the runtime.
const EnginePackage = "whisperx"

// UVCommand is the uv executable used to build the runtime.
const UVCommand = "uv"

const lockRetryDelay = 250 * time.Millisecond

// Options controls an install.
type Options struct {
	Dir           string
	PythonVersion string
	CUDA          bool
	// LinkDir receives a transcribe symlink to the running executable. Empty skips linking.
	LinkDir string
	// Force reinstalls even when a valid runtime is present.
	Force bool
}

// Installer provisions and removes runtimes.
type Installer struct {
	logger     *slog.Logger
	run        Runner
	executable func() (string, error)
	now        func() time.Time
}

// NewInstaller constructs an installer that shells out to uv.
func NewInstaller(logger *slog.Logger) *Installer {
	return &Installer{
		logger:     logging.NewComponentLogger(logger, "runtime"),
		run:        execRunner,
		executable: os.Executable,
		now:        time.Now,
	}
}

// WithRunner replaces the command runner (for testing).
func (i *Installer) WithRunner(run Runner) *Installer {
	i.run = run
	return i
}

// WithExecutable overrides how the link target is resolved (for testing).
func (i *Installer) WithExecutable(fn func() (string, error)) *Installer {
	i.executable = fn
	return i
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Ensure returns a usable runtime, installing one when needed. The boolean
// reports whether an install ran.
func (i *Installer) Ensure(ctx context.Context, opts Options) (Handle, bool, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return Handle{}, false, services.Wrap(services.ErrConfiguration, "runtime", "ensure", "Runtime directory not configured", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Handle{}, false, services.Wrap(services.ErrConfiguration, "runtime", "ensure", "Create runtime directory", err)
	}

	unlock, err := acquire(ctx, dir)
	if err != nil {
		return Handle{}, false, err
	}
	defer unlock()

	if !opts.Force {
		if handle, ok := Detect(dir); ok {
			i.logger.Info("runtime already installed",
				logging.String("runtime_dir", dir),
				logging.String(logging.FieldEventType, "runtime_present"),
			)
			link, target, err := i.link(opts.LinkDir)
			if err != nil {
				return handle, false, err
			}
			if link != "" && (handle.Manifest.Link != link || handle.Manifest.LinkTarget != target) {
				handle.Manifest.Link = link
				handle.Manifest.LinkTarget = target
				if err := writeManifest(dir, handle.Manifest); err != nil {
					return handle, false, services.Wrap(services.ErrTransient, "runtime", "write manifest", "Record link", err)
				}
			}
			return handle, false, nil
		}
	}

	handle, err := i.install(ctx, dir, opts)
	if err != nil {
		return Handle{}, false, err
	}
	return handle, true, nil
}

func (i *Installer) install(ctx context.Context, dir string, opts Options) (Handle, error) {
	version := strings.TrimSpace(opts.PythonVersion)
	if version == "" {
		version = "3.12"
	}
	venv := venvDir(dir)
	python := venvPython(dir)

	i.logger.Info("creating runtime environment",
		logging.String("venv", venv),
		logging.String("python_version", version),
		logging.String(logging.FieldEventType, "runtime_venv"),
	)
	if err := i.exec(ctx, "venv", UVCommand, "venv", "--allow-existing", venv, "--python", version); err != nil {
		return Handle{}, err
	}

	pipArgs := []string{"pip", "install", "--python", python}
	device := whisperx.CPUDevice
	if opts.CUDA {
		device = whisperx.CUDADevice
		pipArgs = append(pipArgs,
			"--index-url", whisperx.CUDAIndexURL,
			"--extra-index-url", whisperx.PypiIndexURL,
			"--index-strategy", "unsafe-best-match",
		)
	} else {
		pipArgs = append(pipArgs, "--index-url", whisperx.PypiIndexURL)
	}
	pipArgs = append(pipArgs, EnginePackage)

	i.logger.Info("installing transcription engine",
		logging.String("package", EnginePackage),
		logging.String("device", device),
		logging.String(logging.FieldEventType, "runtime_pip_install"),
	)
	if err := i.exec(ctx, "pip install", UVCommand, pipArgs...); err != nil {
		return Handle{}, err
	}

	manifest := Manifest{
		RuntimeDir:    dir,
		Python:        python,
		WhisperX:      venvWhisperX(dir),
		PythonVersion: version,
		Packages:      []string{EnginePackage},
		Device:        device,
		InstalledAt:   i.now().UTC(),
	}
	if previous, err := readManifest(dir); err == nil {
		manifest.Link = previous.Link
		manifest.LinkTarget = previous.LinkTarget
	}
	link, target, err := i.link(opts.LinkDir)
	if err != nil {
		return Handle{}, err
	}
	if link != "" {
		manifest.Link = link
		manifest.LinkTarget = target
	}
	if err := writeManifest(dir, manifest); err != nil {
		return Handle{}, services.Wrap(services.ErrTransient, "runtime", "write manifest", "Record runtime install", err)
	}

	i.logger.Info("runtime installed",
		logging.String("runtime_dir", dir),
		logging.String("whisperx", manifest.WhisperX),
		logging.String(logging.FieldEventType, "runtime_installed"),
	)
	return Handle{Dir: dir, Python: python, WhisperX: manifest.WhisperX, Manifest: manifest}, nil
}

func (i *Installer) exec(ctx context.Context, step, name string, args ...string) error {
	output, err := i.run(ctx, name, args...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	detail := strings.TrimSpace(string(output))
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrExternalTool, "runtime", step, "uv not found on PATH; install it from https://docs.astral.sh/uv/", err)
	}
	msg := fmt.Sprintf("%s failed", name)
	if detail != "" {
		msg = fmt.Sprintf("%s failed: %s", name, lastLine(detail))
	}
	return services.Wrap(services.ErrExternalTool, "runtime", step, msg, err)
}

func lastLine(output string) string {
	if idx := strings.LastIndexByte(output, '\n'); idx >= 0 {
		return strings.TrimSpace(output[idx+1:])
	}
	return output
}

// linkPaths returns the link to create in linkDir and the executable it points
// at. Both are empty when linking is disabled.
func linkPaths(linkDir string, executable func() (string, error)) (string, string, error) {
	linkDir = strings.TrimSpace(linkDir)
	if linkDir == "" {
		return "", "", nil
	}
	if executable == nil {
		executable = os.Executable
	}
	target, err := executable()
	if err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, "runtime", "link", "Resolve transcribe executable", err)
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}
	return filepath.Join(linkDir, linkName), target, nil
}

// link places a symlink to the running executable in linkDir and returns the
// link and its target. An existing file that is not a symlink is never replaced.
func (i *Installer) link(linkDir string) (string, string, error) {
	link, target, err := linkPaths(linkDir, i.executable)
	if err != nil {
		return "", "", err
	}
	if link == "" {
		return "", "", nil
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, "runtime", "link", "Create link directory", err)
	}
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return "", "", services.Wrap(services.ErrConfiguration, "runtime", "link",
				fmt.Sprintf("%s exists and is not a symlink", link), nil)
		}
		if current, err := os.Readlink(link); err == nil && current == target {
			return link, target, nil
		}
		if err := os.Remove(link); err != nil {
			return "", "", services.Wrap(services.ErrConfiguration, "runtime", "link", "Replace existing symlink", err)
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, "runtime", "link", "Create symlink", err)
	}
	i.logger.Info("linked executable",
		logging.String("link", link),
		logging.String("target", target),
		logging.String(logging.FieldEventType, "runtime_linked"),
	)
	return link, target, nil
}

// acquire takes the exclusive install lock, waiting until ctx is done.
func acquire(ctx context.Context, dir string) (func(), error) {
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "runtime", "lock", "Acquire install lock", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "runtime", "lock", "Another install is in progress", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
