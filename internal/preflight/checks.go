package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"transcribe/internal/config"
	"transcribe/internal/deps"
)

// HuggingFaceURL is the public hub endpoint.
const HuggingFaceURL = "https://huggingface.co"

// DiarizationModels are the gated pyannote repositories whose terms must be
// accepted before diarization can download weights.
var DiarizationModels = []string{
	"pyannote/speaker-diarization-3.1",
	"pyannote/segmentation-3.0",
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// CheckHuggingFaceToken verifies the token authenticates against the hub.
func CheckHuggingFaceToken(ctx context.Context, baseURL, token string) Result {
	const name = "Hugging Face token"

	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Name: name, Detail: "missing (set HF_TOKEN or diarization.hf_token)"}
	}

	resp, err := hubGet(ctx, strings.TrimRight(baseURL, "/")+"/api/whoami-v2", token)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var who struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&who); err == nil && who.Name != "" {
			return Result{Name: name, Passed: true, Detail: "authenticated as " + who.Name}
		}
		return Result{Name: name, Passed: true, Detail: "authenticated"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "rejected (invalid or expired token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckGatedModel verifies the token has accepted the terms for repo.
func CheckGatedModel(ctx context.Context, baseURL, token, repo string) Result {
	name := "Model " + repo

	url := fmt.Sprintf("%s/%s/resolve/main/config.yaml", strings.TrimRight(baseURL, "/"), repo)
	resp, err := hubGet(ctx, url, strings.TrimSpace(token))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "access granted"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("terms not accepted (visit %s/%s)", HuggingFaceURL, repo)}
	case http.StatusNotFound:
		return Result{Name: name, Detail: "repository not found"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

func hubGet(ctx context.Context, url, token string) (*http.Response, error) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// whisperxBinary is the provisioned runtime entry point, empty when the engine
// runs through uvx. The status command and the transcription run share this list.
func CheckSystemDeps(cfg *config.Config, whisperxBinary string) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg.FFmpegBinary(), whisperxBinary != ""))
	if whisperxBinary != "" {
		statuses = append(statuses, deps.CheckExecutable("WhisperX", "Provisioned transcription engine", whisperxBinary))
	}
	return statuses
}
