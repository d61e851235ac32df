package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// validNameChars matches only alphanumeric characters, hyphens, and periods.
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)

// validUsername matches POSIX-style login names accepted by useradd.
var validUsername = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// validPackage rejects only what would not survive as one package
// argument: whitespace, control characters and a leading dash.
var validPackage = regexp.MustCompile(`^[^\s\x00-\x1f\x7f-][^\s\x00-\x1f\x7f]*$`)

// ValidateServerName checks that a server name conforms to RFC 1123 hostname
// rules as required by Hetzner Cloud:
//   - At least 2 characters
//   - Only alphanumeric characters (a-z, A-Z, 0-9), hyphens (-), and periods (.)
//   - First character must be alphanumeric
//   - Last character must not be a hyphen or period
func ValidateServerName(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("server name must be at least 2 characters, got %d", len(name))
	}

	if !validNameChars.MatchString(name) {
		return fmt.Errorf("server name %q contains invalid characters (only a-z, A-Z, 0-9, hyphens, and periods are allowed)", name)
	}

	first := name[0]
	if !isAlphanumeric(first) {
		return fmt.Errorf("server name must start with an alphanumeric character, got %q", string(first))
	}

	last := name[len(name)-1]
	if last == '-' || last == '.' {
		return fmt.Errorf("server name must not end with a hyphen or period, got %q", string(last))
	}

	return nil
}

// ValidateUsername checks that name is usable as a Linux login name.
func ValidateUsername(name string) error {
	if name == "root" {
		return fmt.Errorf("remote user must not be root")
	}
	if !validUsername.MatchString(name) {
		return fmt.Errorf("remote user %q is not a valid login name", name)
	}
	return nil
}

// ValidatePackageName checks that name can be passed to the package
// manager as a single argument.
func ValidatePackageName(name string) error {
	if !validPackage.MatchString(name) {
		return fmt.Errorf("package name %q must be one word and must not start with a dash", name)
	}
	return nil
}

// ValidatePort accepts a single TCP port ("443") or an inclusive range
// ("8000-8100").
func ValidatePort(port string) error {
	_, err := canonicalPort(port)
	return err
}

// NormalizePorts trims every entry, drops empty ones, validates the rest
// and removes duplicates keeping the first occurrence. Entries are
// rewritten in plain decimal first, so "022", "+22" and "22" are one port.
func NormalizePorts(ports []string) ([]string, error) {
	canonical := make([]string, 0, len(ports))
	for _, port := range ports {
		port = strings.TrimSpace(port)
		if port == "" {
			continue
		}
		c, err := canonicalPort(port)
		if err != nil {
			return nil, err
		}
		canonical = append(canonical, c)
	}
	return Dedupe(canonical), nil
}

// CoversPort reports whether want is one of ports or inside one of its
// ranges. Entries must already be normalized.
func CoversPort(ports []string, want int) bool {
	for _, port := range ports {
		lo, hi, isRange := strings.Cut(port, "-")
		first, _ := strconv.Atoi(lo)
		last := first
		if isRange {
			last, _ = strconv.Atoi(hi)
		}
		if first <= want && want <= last {
			return true
		}
	}
	return false
}

func canonicalPort(port string) (string, error) {
	lo, hi, isRange := strings.Cut(port, "-")
	first, err := parsePort(lo)
	if err != nil {
		return "", fmt.Errorf("invalid port %q: %w", port, err)
	}
	if !isRange {
		return strconv.Itoa(first), nil
	}
	last, err := parsePort(hi)
	if err != nil {
		return "", fmt.Errorf("invalid port %q: %w", port, err)
	}
	if last < first {
		return "", fmt.Errorf("invalid port %q: range end is below range start", port)
	}
	if first == last {
		return strconv.Itoa(first), nil
	}
	return strconv.Itoa(first) + "-" + strconv.Itoa(last), nil
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("out of range 1-65535")
	}
	return n, nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
