package deps

import (
	"fmt"
	"os"
	"runtime"
)

// CheckExecutable reports whether path is an executable regular file. It is
// used for binaries that live at a fixed location rather than on PATH, such as
// the whisperx entry point inside a provisioned virtualenv.
func CheckExecutable(name, description, path string) Status {
	status := Status{
		Name:        name,
		Command:     path,
		Description: description,
	}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = fmt.Sprintf("%s not found", path)
		return status
	}
	if !isExecutable(info) {
		status.Detail = fmt.Sprintf("%s is not executable", path)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
