// Package secrets expands credential references in configuration values so
// that notification URLs and DSNs need not carry tokens in plain text.
//
// Supported references:
//   - ${VAR} is replaced by the environment variable VAR, which must be set
//   - ${VAR:-default} falls back to default, which may be empty
//   - ${file:/run/secrets/token} reads a Docker or Kubernetes secret file
//
// Values are inserted verbatim; secrets holding URL delimiters must be
// percent-encoded at the source. Error messages name variables and files but
// never values.
package secrets

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/logging"
)

const (
	// maxSecretFileSize limits secret file reads; secrets are tokens, not documents.
	maxSecretFileSize = 64 * 1024

	filePrefix = "file:"
)

// Expander resolves references. The zero value reads the process
// environment and logs nothing.
type Expander struct {
	// Getenv replaces os.Getenv.
	Getenv func(string) string
	// Logger receives warnings about permissive secret files.
	Logger *slog.Logger
}

// Expand resolves s with the process environment.
func Expand(s string) (string, error) {
	return Expander{}.Expand(s)
}

// Expand returns s with every reference resolved. All missing variables and
// unreadable files are reported together.
func (e Expander) Expand(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	var problems []string
	expanded := os.Expand(s, func(key string) string {
		if path, ok := strings.CutPrefix(key, filePrefix); ok {
			secret, err := e.ReadFile(path)
			if err != nil {
				problems = append(problems, err.Error())
				return ""
			}
			return secret
		}

		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		problems = append(problems, "missing environment variable "+name)
		return ""
	})

	if len(problems) > 0 {
		return "", errors.Newf("cannot expand secret references: %s", strings.Join(problems, "; ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file. Trailing newlines are trimmed; an empty file
// is an error. Files readable by group or others are accepted with a
// warning.
func (e Expander) ReadFile(path string) (string, error) {
	if path == "" {
		return "", errors.NewStd("secret file path is empty")
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	switch {
	case err != nil && os.IsNotExist(err):
		return "", errors.NewStd("secret file not found: " + cleanPath)
	case err != nil:
		return "", errors.NewStd("cannot stat secret file: " + cleanPath)
	case !info.Mode().IsRegular():
		return "", errors.NewStd("secret path is not a regular file: " + cleanPath)
	case info.Size() > maxSecretFileSize:
		return "", errors.NewStd("secret file too large: " + cleanPath)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logging.OrDiscard(e.Logger).Warn("secret file is readable by group or others",
			"path", cleanPath, "perm", perm.String())
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", errors.NewStd("cannot read secret file: " + cleanPath)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", errors.NewStd("secret file is empty: " + cleanPath)
	}
	return secret, nil
}
