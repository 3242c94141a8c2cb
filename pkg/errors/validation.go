package errors

import (
	"strings"
	"unicode"
)

// maxIdentifierLength bounds identifiers accepted from outside the allocator.
// It is deliberately larger than the allocator's own limit so that ids written
// by older runs with a longer limit still validate.
const maxIdentifierLength = 255

// ValidateIdentifier validates a package identifier received from an
// untrusted source (e.g. a URL path in the serve command).
//
// The rules mirror what the identifier allocator can produce:
//   - No empty identifiers
//   - Maximum length of 255 bytes
//   - Only lowercase ASCII letters, digits, '.', '_', '+' and '-'
//   - No leading '.' and no ".." (no hidden files, no traversal)
func ValidateIdentifier(id string) error {
	if id == "" {
		return New(ErrCodeInvalidIdentifier, "identifier cannot be empty")
	}
	if len(id) > maxIdentifierLength {
		return New(ErrCodeInvalidIdentifier, "identifier too long (max %d characters)", maxIdentifierLength)
	}
	if strings.HasPrefix(id, ".") || strings.Contains(id, "..") {
		return New(ErrCodeInvalidIdentifier, "identifier cannot contain path traversal sequences")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '+', r == '-':
		default:
			return New(ErrCodeInvalidIdentifier, "identifier contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateOutdir validates an output directory path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - Not the filesystem root
func ValidateOutdir(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "output directory cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if path == "/" || path == `\` {
		return New(ErrCodeInvalidPath, "refusing to use the filesystem root as output directory")
	}

	return nil
}

// ValidateGitURL validates a repository URL for the nix fetcher.
// Accepted schemes are https, http, ssh, git and file.
func ValidateGitURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "git URL cannot be empty")
	}
	if strings.ContainsAny(rawURL, "\"\\\n") {
		return New(ErrCodeInvalidInput, "git URL contains invalid characters")
	}
	for _, scheme := range []string{"https://", "http://", "ssh://", "git://", "git+ssh://", "file://"} {
		if strings.HasPrefix(rawURL, scheme) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "git URL must use https, http, ssh, git or file scheme")
}
