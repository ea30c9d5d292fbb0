package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of a one-shot availability check, matching the shape
// the monitoring service records for its own checks.
type Result struct {
	Status       string // up or down
	ResponseTime time.Duration
	StatusCode   int
	ErrorMessage string
}

// Up reports whether the site answered with 200.
func (r Result) Up() bool {
	return r.Status == "up"
}

// Check performs a single availability check of a URL from this machine.
// Failures are encoded in the result, not returned; a down site is a normal
// outcome.
func Check(ctx context.Context, url string) Result {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: "down", ErrorMessage: err.Error()}
	}

	start := time.Now()

	resp, err := client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		logrus.Debugf("Probe of %s failed: %s", url, err)

		return Result{
			Status:       "down",
			ResponseTime: elapsed,
			ErrorMessage: err.Error(),
		}
	}
	defer resp.Body.Close()

	result := Result{
		ResponseTime: elapsed,
		StatusCode:   resp.StatusCode,
	}

	if resp.StatusCode == http.StatusOK {
		result.Status = "up"
	} else {
		result.Status = "down"
		result.ErrorMessage = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	return result
}
