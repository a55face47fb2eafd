package objects

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Matches the last path segment, tolerating a single trailing separator. Both '/' and '\'
// are treated as separators so that Windows paths derive the same keys on any OS.
var basename = regexp.MustCompile(`[^\\/]+[\\/]?$`)

var (
	ErrInvalidKey = errors.New("invalid object key")
	ErrUnsafeKey  = errors.New("object key resolves to a path outside the download directory")
)

// Basename returns the final segment of a local file path. A path without a separator is its
// own basename.
func Basename(path string) string {
	match := basename.FindString(path)

	return strings.TrimRight(match, `\/`)
}

// DeriveKey returns the object key for a local evidence file.
//
// Without a strip prefix the key is the file's basename. With a strip prefix the key is the
// path with that exact prefix removed, or the path unchanged if it does not start with the
// prefix. A non-empty family namespaces the key as family/key.
//
// Paths that do not yield a file name (e.g. '/' or 'a//') are rejected, since the resulting
// key would be stored as a directory marker.
func DeriveKey(path, family, strip string) (string, error) {
	key := Basename(path)
	if strip != "" {
		key = strings.TrimPrefix(path, strip)
	}

	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("%w: '%s' does not name a file", ErrInvalidKey, path)
	}

	if family != "" {
		return family + "/" + key, nil
	}

	return key, nil
}

// LocalPath returns the path under dir for a downloaded object. Keys that would resolve to dir
// itself or escape it (e.g. '../shot.png') are rejected.
func LocalPath(dir, key string) (string, error) {
	file := filepath.Join(dir, filepath.FromSlash(key))

	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return "", fmt.Errorf("%w: '%s' (%v)", ErrUnsafeKey, key, err)
	}

	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: '%s'", ErrUnsafeKey, key)
	}

	return file, nil
}
