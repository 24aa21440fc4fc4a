// CLAUDE:SUMMARY Resolves a source location to a local CSV: plain paths pass through, URLs are downloaded with retries, ZIP archives are extracted.
package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Fetch makes location available as a local CSV file. Remote files and
// extracted archives are written under workDir; cleanup removes them and is
// never nil.
func Fetch(ctx context.Context, location, workDir string) (string, func(), error) {
	nop := func() {}
	local := location
	cleanup := nop

	if isURL(location) {
		dir, err := os.MkdirTemp(workDir, "fetch-")
		if err != nil {
			return "", nop, fmt.Errorf("create work dir: %w", err)
		}
		cleanup = func() { os.RemoveAll(dir) }

		name := path.Base(strings.SplitN(location, "?", 2)[0])
		if name == "" || name == "/" || name == "." {
			name = "download.csv"
		}
		local = filepath.Join(dir, name)
		if err := downloadFile(ctx, location, local); err != nil {
			cleanup()
			return "", nop, fmt.Errorf("download: %w", err)
		}
	}

	if !strings.HasSuffix(strings.ToLower(local), ".zip") {
		return local, cleanup, nil
	}

	dir, err := os.MkdirTemp(workDir, "unzip-")
	if err != nil {
		cleanup()
		return "", nop, fmt.Errorf("create work dir: %w", err)
	}
	prev := cleanup
	cleanup = func() {
		os.RemoveAll(dir)
		prev()
	}

	files, err := unzipFile(local, dir)
	if err != nil {
		cleanup()
		return "", nop, fmt.Errorf("unzip: %w", err)
	}
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f), ".csv") {
			return f, cleanup, nil
		}
	}
	cleanup()
	return "", nop, fmt.Errorf("no CSV found in %s", location)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

const downloadAttempts = 3

// retryBackoff is the wait before the given attempt (1-based after the first).
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// downloadFile downloads url to dest with retries and timeout.
func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	var lastErr error
	for attempt := 0; attempt < downloadAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			continue
		}

		f, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("create file: %w", err)
		}
		_, copyErr := io.Copy(f, resp.Body)
		resp.Body.Close()
		closeErr := f.Close()

		if copyErr != nil {
			lastErr = copyErr
			continue
		}
		if closeErr != nil {
			return closeErr
		}
		return nil
	}
	return fmt.Errorf("download %s failed after %d attempts: %w", url, downloadAttempts, lastErr)
}

// unzipFile extracts the regular files of a ZIP archive into destDir, flattening
// directories, and returns the extracted paths in archive order.
func unzipFile(src, destDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var paths []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extract(f, destPath); err != nil {
			return nil, err
		}
		paths = append(paths, destPath)
	}
	return paths, nil
}

func extract(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
