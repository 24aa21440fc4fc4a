package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Checker probes every catalog location and records whether it is reachable.
// URLs get a HEAD request; local files are stat'ed and mapped onto HTTP-like
// codes (200 readable, 404 missing, 403 anything else).
type Checker struct {
	catalog *Catalog
	logger  *slog.Logger
	client  *http.Client
}

// NewChecker creates a Checker over catalog.
func NewChecker(catalog *Catalog, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		catalog: catalog,
		logger:  logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// CheckAll probes every source and persists the result.
func (c *Checker) CheckAll(ctx context.Context) {
	entries, err := c.catalog.List()
	if err != nil {
		c.logger.Error("source check: cannot list sources", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	var ok, failed int
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}

		status, checkErr := c.checkOne(ctx, e.Location)
		errMsg := ""
		if checkErr != nil {
			errMsg = checkErr.Error()
		}
		if err := c.catalog.UpdateCheck(e.ID, status, errMsg); err != nil {
			c.logger.Error("source check: update failed", "source", e.ID, "error", err)
		}

		if status >= 200 && status < 400 {
			ok++
		} else {
			failed++
			c.logger.Warn("source unavailable",
				"source", e.ID,
				"location", e.Location,
				"status", status,
				"error", errMsg,
			)
		}
	}

	c.logger.Info("source check complete", "total", ok+failed, "ok", ok, "failed", failed)
}

func (c *Checker) checkOne(ctx context.Context, location string) (int, error) {
	if !isURL(location) {
		return statFile(location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", location, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func statFile(path string) (int, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, err
	case err != nil:
		return http.StatusForbidden, err
	case info.IsDir():
		return http.StatusForbidden, fmt.Errorf("%s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return http.StatusForbidden, err
	}
	f.Close()
	return http.StatusOK, nil
}
