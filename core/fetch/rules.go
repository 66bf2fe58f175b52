// URL helpers for the fetcher: normalization for deduplication,
// origin keys for the robots cache, and static-asset filtering.
package fetch

import (
	"net/url"
	"path"
	"strings"
)

// staticExtensions are file extensions that never carry product
// tables. PDFs are deliberately absent: datasheets are a primary
// input.
var staticExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".bmp": true,
	".css": true, ".js": true, ".mjs": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp4": true, ".webm": true, ".mp3": true, ".wav": true,
	".zip": true, ".tar": true, ".gz": true,
}

// IsStaticAsset checks if a URL points to a static asset (image, CSS,
// JS, etc.) that cannot yield records.
func IsStaticAsset(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	return staticExtensions[ext]
}

// NormalizeURL strips fragments and trailing slashes for deduplication.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""

	// Remove trailing slash (but keep root "/").
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}

// Origin returns the robots-cache key for a URL: scheme://host.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
