package remote

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRepoURL extracts the owner and repository name from a repository URL
// such as "https://github.com/alice/CSES_Solutions" (trailing slashes and a
// ".git" suffix are tolerated).
func ParseRepoURL(raw string) (owner, name string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("invalid repository URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("repository URL must use http or https scheme")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository URL must contain owner and repository name")
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
