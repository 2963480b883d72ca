// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 11:05:52 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
)

// chromeAvailable is set by TestMain; UI tests skip when no browser can be launched
var chromeAvailable bool

// TestMain checks for a Chrome binary before running any UI tests.
// MFAFLOW_BROWSER_REMOTE_URL counts as available.
func TestMain(m *testing.M) {
	mw := io.MultiWriter(os.Stderr)

	chromeAvailable = os.Getenv("MFAFLOW_BROWSER_REMOTE_URL") != "" || findChrome() != ""
	if chromeAvailable {
		fmt.Fprintln(mw, "✓ Browser available - proceeding with UI tests")
	} else {
		fmt.Fprintln(mw, "⚠ No Chrome binary found - UI tests will be skipped")
	}

	os.Exit(m.Run())
}

func findChrome() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func requireBrowser(t *testing.T) {
	t.Helper()
	if !chromeAvailable {
		t.Skip("no browser available")
	}
}
