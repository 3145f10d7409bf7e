package service

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename reduces name to a key-safe base name with an extension.
func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeKeyChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "file"
	}
	if path.Ext(base) == "" {
		base += ".pdf"
	}
	return base
}

// objectKey builds a unique object key under prefix for filename.
func objectKey(prefix, filename string, now time.Time) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%d-%s-%s", now.UnixMilli(), short, sanitizeFilename(filename))
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// fileExt returns the extension of p, or fallback when it has none.
func fileExt(p, fallback string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 10 || unsafeKeyChars.MatchString(ext) {
		return fallback
	}
	return ext
}
