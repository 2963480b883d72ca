package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

var (
	testRunDir     string
	testRunDirOnce sync.Once
	testRunDirErr  error
)

// getOrCreateTestRunDir returns the results directory shared by one test run
func getOrCreateTestRunDir() (string, error) {
	testRunDirOnce.Do(func() {
		// Check if TEST_RESULTS_DIR is set by runner
		if envDir := os.Getenv("TEST_RESULTS_DIR"); envDir != "" {
			testRunDir = envDir
			return
		}

		timestamp := time.Now().Format("run-2006-01-02-15-04-05")
		testRunDir = filepath.Join("..", "results", timestamp)
		testRunDirErr = os.MkdirAll(testRunDir, 0755)
	})

	if testRunDirErr != nil {
		return "", fmt.Errorf("failed to create test run directory: %w", testRunDirErr)
	}
	return testRunDir, nil
}

// screenshotDir returns test/results/{run-timestamp}/screenshots
func screenshotDir() (string, error) {
	runDir, err := getOrCreateTestRunDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(runDir, "screenshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshots directory: %w", err)
	}
	return dir, nil
}

// TakeScreenshot captures the page of ctx into the run's screenshots directory
func TakeScreenshot(ctx context.Context, name string) error {
	dir, err := screenshotDir()
	if err != nil {
		return err
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.png", name, time.Now().Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}
