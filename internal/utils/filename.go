package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// URLHash returns a short stable hash of a URL, used to key history rows
// and to generate filenames when the URL carries no usable basename.
func URLHash(rawurl string) string {
	h := sha256.Sum256([]byte(rawurl))
	return hex.EncodeToString(h[:8]) // 16 chars
}

// FilenameFromURL extracts the URL-decoded basename of the URL's final
// path segment, query string stripped. When no usable basename exists the
// name is generated from a hash of the URL instead.
func FilenameFromURL(rawurl string) string {
	if name, ok := URLBasename(rawurl); ok {
		return name
	}
	return "download-" + URLHash(rawurl)
}

// URLBasename returns the sanitized, URL-decoded basename of the URL's
// path and whether it is usable as a filename. Callers with a better name
// source, such as a Content-Disposition header, consult this to decide
// whether the URL itself names the file.
func URLBasename(rawurl string) (string, bool) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "", false
	}

	base := path.Base(parsed.Path)
	if decoded, err := url.PathUnescape(base); err == nil {
		base = decoded
	}

	name := SanitizeFilename(base)
	if name == "" || name == "." || name == "/" {
		return "", false
	}
	return name, true
}

// SanitizeFilename strips path components and replaces characters that are
// unsafe in filenames on common filesystems.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.TrimSpace(name)
	for _, c := range []string{"/", ":", "*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, c, "_")
	}
	return name
}
