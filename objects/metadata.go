package objects

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidMetadata = errors.New("invalid metadata")

// ParseMetadata merges KEY=VALUE pairs into a metadata map. Pairs are split on the first '='
// and later keys overwrite earlier ones. A nil list yields a nil map so that callers can
// distinguish 'no metadata' from 'empty metadata'.
func ParseMetadata(pairs []string) (map[string]string, error) {
	if pairs == nil {
		return nil, nil
	}

	metadata := map[string]string{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: '%s' is not KEY=VALUE", ErrInvalidMetadata, pair)
		}

		metadata[k] = v
	}

	return metadata, nil
}

// FormatMetadata renders metadata as a single line of sorted key=value pairs.
func FormatMetadata(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, metadata[k]))
	}

	return "{" + strings.Join(pairs, " ") + "}"
}
