package proxy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidHostname = errors.New("invalid hostname")

// LocalSuffix is the top-level label for synthesized project hostnames.
const LocalSuffix = "local"

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// SelectHostname picks the public hostname for a project: an explicit custom
// domain wins, otherwise project-{id}.local is synthesized.
func SelectHostname(projectID int64, customDomain string) (string, error) {
	if strings.TrimSpace(customDomain) == "" {
		return fmt.Sprintf("project-%d.%s", projectID, LocalSuffix), nil
	}
	return NormalizeHostname(customDomain)
}

// NormalizeHostname lowercases a hostname, strips a trailing dot and port,
// and validates each label. Anything that could break out of a server_name
// directive is rejected.
// "Shop.Example.com:8080" → "shop.example.com"
func NormalizeHostname(hostname string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(hostname))

	// Strip port if present (find last colon, check if it's followed by digits)
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		potentialPort := host[idx+1:]
		isPort := len(potentialPort) > 0
		for _, c := range potentialPort {
			if c < '0' || c > '9' {
				isPort = false
				break
			}
		}
		if isPort {
			host = host[:idx]
		}
	}
	host = strings.TrimSuffix(host, ".")

	if host == "" || len(host) > 253 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}
	for _, label := range strings.Split(host, ".") {
		if !labelPattern.MatchString(label) {
			return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
		}
	}
	return host, nil
}

// PublicURL returns the URL users reach a hostname at.
func PublicURL(hostname string) string {
	return "http://" + hostname
}
