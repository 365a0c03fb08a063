package services

import (
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// NormalisePath strips the archive's synthetic root folder (the first
// segment, e.g. "owner-repo-1a2b3c/") and returns the rest joined with "/".
//
// The result is rejected with a *domain.UnsafePathError when it is empty,
// absolute, contains a ".." segment or a NUL byte.
func NormalisePath(raw string) (string, error) {
	name := toSlash(raw)

	i := strings.IndexByte(name, '/')
	if i < 0 {
		return "", &domain.UnsafePathError{Path: raw, Reason: "empty after stripping archive root"}
	}
	rest := name[i+1:]

	switch {
	case rest == "":
		return "", &domain.UnsafePathError{Path: raw, Reason: "empty after stripping archive root"}
	case strings.HasPrefix(rest, "/"):
		return "", &domain.UnsafePathError{Path: raw, Reason: "absolute path"}
	case strings.IndexByte(rest, 0) >= 0:
		return "", &domain.UnsafePathError{Path: raw, Reason: "NUL byte in path"}
	}

	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return "", &domain.UnsafePathError{Path: raw, Reason: "parent directory traversal"}
		}
	}

	return rest, nil
}

// toSlash treats backslashes as separators; some zip writers emit them.
func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
