// Package attribution names the analyst responsible for a saved snapshot.
package attribution

import (
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Unknown is returned when no analyst name can be found.
const Unknown = "unknown"

var (
	cachedName string
	once       sync.Once
)

// DetectAnalyst returns the best available analyst name.
// Checks in order: OSINTGRAPH_ANALYST env, git config user.name, "unknown".
// The result is cached after the first call.
func DetectAnalyst() string {
	once.Do(func() {
		cachedName = detectAnalystUncached()
	})
	return cachedName
}

// detectAnalystUncached performs detection without caching. Used for testing.
func detectAnalystUncached() string {
	if name := strings.TrimSpace(os.Getenv("OSINTGRAPH_ANALYST")); name != "" {
		return name
	}
	if name := gitUserName(); name != "" {
		return name
	}
	return Unknown
}

// gitUserName runs `git config --get user.name` and returns the trimmed result.
// Returns empty string on any error.
func gitUserName() string {
	out, err := exec.Command("git", "config", "--get", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
