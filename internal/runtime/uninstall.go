package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"transcribe/internal/logging"
	"transcribe/internal/services"
)

// UninstallOptions controls runtime removal.
type UninstallOptions struct {
	Dir string
	// Purge also removes CacheDir.
	Purge    bool
	CacheDir string
}

// UninstallResult lists what was removed.
type UninstallResult struct {
	Removed []string
	// SkippedLink is set when a link was found but no longer points at the
	// recorded executable.
	SkippedLink string
}

// Uninstall removes the runtime environment, its manifest, and the link it
// created. Running it on a clean system is a no-op.
func (i *Installer) Uninstall(ctx context.Context, opts UninstallOptions) (UninstallResult, error) {
	var result UninstallResult
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return result, services.Wrap(services.ErrConfiguration, "runtime", "uninstall", "Runtime directory not configured", nil)
	}

	if _, err := os.Stat(dir); err == nil {
		unlock, err := acquire(ctx, dir)
		if err != nil {
			return result, err
		}
		manifest, manifestErr := readManifest(dir)
		if manifestErr == nil && manifest.Link != "" {
			removed, err := removeLink(manifest.Link, manifest.LinkTarget)
			if err != nil {
				unlock()
				return result, services.Wrap(services.ErrTransient, "runtime", "uninstall", "Remove link", err)
			}
			if removed {
				result.Removed = append(result.Removed, manifest.Link)
			} else if _, err := os.Lstat(manifest.Link); err == nil {
				result.SkippedLink = manifest.Link
			}
		}
		for _, path := range []string{venvDir(dir), manifestPath(dir)} {
			removed, err := removeIfExists(path)
			if err != nil {
				unlock()
				return result, services.Wrap(services.ErrTransient, "runtime", "uninstall", "Remove "+path, err)
			}
			if removed {
				result.Removed = append(result.Removed, path)
			}
		}
		unlock()
		_ = os.Remove(filepath.Join(dir, lockName))
		// Only succeeds when nothing else lives in the runtime directory.
		if err := os.Remove(dir); err == nil {
			result.Removed = append(result.Removed, dir)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return result, services.Wrap(services.ErrTransient, "runtime", "uninstall", "Inspect runtime directory", err)
	}

	if opts.Purge && strings.TrimSpace(opts.CacheDir) != "" {
		removed, err := removeIfExists(opts.CacheDir)
		if err != nil {
			return result, services.Wrap(services.ErrTransient, "runtime", "uninstall", "Remove cache directory", err)
		}
		if removed {
			result.Removed = append(result.Removed, opts.CacheDir)
		}
	}

	for _, path := range result.Removed {
		i.logger.Info("removed", logging.String("path", path), logging.String(logging.FieldEventType, "runtime_removed"))
	}
	if result.SkippedLink != "" {
		logging.WarnWithContext(i.logger, "link left in place", "runtime_link_skipped",
			logging.String("link", result.SkippedLink),
			logging.String(logging.FieldErrorHint, "remove it manually if it is stale"),
			logging.String(logging.FieldImpact, "link no longer points at the installed executable"),
		)
	}
	return result, nil
}

// removeLink deletes link only when it is a symlink to target.
func removeLink(link, target string) (bool, error) {
	info, err := os.Lstat(link)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}
	current, err := os.Readlink(link)
	if err != nil || current != target {
		return false, nil
	}
	if err := os.Remove(link); err != nil {
		return false, err
	}
	return true, nil
}
