// Package version holds the build version and a best-effort update check.
package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// AppVersion is overridden at build time via -ldflags.
var AppVersion = "v0.0.0"

type gitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates compares AppVersion against the latest GitHub release and
// logs a warning when a newer one exists. Failures are silent: the check is
// advisory and must never delay startup.
func CheckForUpdates(logger *zap.Logger) {
	url := "https://api.github.com/repos/luwill/Claude-Code-Model-Router/releases/latest"

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var release gitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return
	}

	current, err := version.NewVersion(AppVersion)
	if err != nil {
		return
	}
	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return
	}

	if current.LessThan(latest) {
		logger.Warn(fmt.Sprintf("You are running an outdated version (%s); the latest is %s", AppVersion, release.TagName))
	}
}
