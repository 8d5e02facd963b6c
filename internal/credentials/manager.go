// Package credentials resolves per-platform API credentials from, in
// ascending precedence, an optional Vault mount, the static config file, and
// environment variables. Secrets flow to HTTP headers only and are never
// logged.
package credentials

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// requiredKeys is the frozen canonical credential schema per platform.
// Optional keys are listed separately; they merge when present but never
// gate configuration.
var requiredKeys = map[ticket.Platform][]string{
	ticket.PlatformJira:        {"url", "email", "token"},
	ticket.PlatformGitHub:      {"token"},
	ticket.PlatformLinear:      {"api_key"},
	ticket.PlatformAzureDevOps: {"organization", "pat"},
	ticket.PlatformMonday:      {"api_token"},
	ticket.PlatformTrello:      {"key", "token"},
}

var optionalKeys = map[ticket.Platform][]string{
	ticket.PlatformGitHub: {"api_url"},
}

// setupHints point the user at the missing configuration.
var setupHints = map[ticket.Platform]string{
	ticket.PlatformJira:        "set INGOT_JIRA_URL, INGOT_JIRA_EMAIL and INGOT_JIRA_TOKEN, or the platforms.jira section of ingot.yaml",
	ticket.PlatformGitHub:      "set INGOT_GITHUB_TOKEN (and INGOT_GITHUB_API_URL for GitHub Enterprise)",
	ticket.PlatformLinear:      "set INGOT_LINEAR_API_KEY",
	ticket.PlatformAzureDevOps: "set INGOT_AZURE_DEVOPS_ORGANIZATION and INGOT_AZURE_DEVOPS_PAT",
	ticket.PlatformMonday:      "set INGOT_MONDAY_API_TOKEN",
	ticket.PlatformTrello:      "set INGOT_TRELLO_KEY and INGOT_TRELLO_TOKEN",
}

// Manager merges credential sources and answers configuration queries. It
// implements the fetchers.CredentialSource contract.
type Manager struct {
	mu     sync.Mutex
	static map[ticket.Platform]map[string]string
	vault  map[ticket.Platform]map[string]string
	log    logger.Logger
}

// NewManager builds a manager over static (config-file) credentials. Vault
// is consulted lazily on first use when the Vault environment is present.
func NewManager(static map[ticket.Platform]map[string]string) *Manager {
	return &Manager{
		static: static,
		log:    logger.New("credentials"),
	}
}

// RequiredKeys returns the canonical key set for a platform in sorted order.
func RequiredKeys(platform ticket.Platform) []string {
	keys := append([]string(nil), requiredKeys[platform]...)
	sort.Strings(keys)
	return keys
}

// Credentials resolves the merged credential map for a platform. The second
// return is the configured flag; when false the third return carries an
// actionable setup message.
func (m *Manager) Credentials(platform ticket.Platform) (map[string]string, bool, string) {
	required, ok := requiredKeys[platform]
	if !ok {
		return nil, false, fmt.Sprintf("no credential schema for platform %s", platform)
	}

	merged := make(map[string]string)
	for k, v := range m.vaultCredentials(platform) {
		merged[k] = v
	}
	for k, v := range m.static[platform] {
		if v != "" {
			merged[k] = v
		}
	}
	for _, key := range append(append([]string(nil), required...), optionalKeys[platform]...) {
		if v := os.Getenv(envVar(platform, key)); v != "" {
			merged[key] = v
		}
	}

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(merged[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		msg := fmt.Sprintf("%s credentials missing %s; %s",
			platform, strings.Join(missing, ", "), setupHints[platform])
		return nil, false, msg
	}
	return merged, true, ""
}

// ValidateCredentials reports whether a platform's fallback credentials are
// usable, with a setup message when they are not.
func (m *Manager) ValidateCredentials(platform ticket.Platform) (bool, string) {
	_, ok, msg := m.Credentials(platform)
	return ok, msg
}

// HasFallbackConfigured reports whether any platform has a complete
// credential set, which is what decides if a direct fallback fetcher is
// worth constructing.
func (m *Manager) HasFallbackConfigured() bool {
	for _, platform := range ticket.AllPlatforms() {
		if _, ok, _ := m.Credentials(platform); ok {
			return true
		}
	}
	return false
}

// envVar maps a platform/key pair to its override variable, e.g.
// (jira, token) -> INGOT_JIRA_TOKEN.
func envVar(platform ticket.Platform, key string) string {
	return "INGOT_" + strings.ToUpper(string(platform)) + "_" + strings.ToUpper(key)
}
