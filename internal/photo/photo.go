package photo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Hash returns the hex SHA-256 digest of the image bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NeedsUpload reports whether a freshly hashed photo differs from the one
// already stored. An empty previous hash means nothing was stored yet.
func NeedsUpload(newHash, previousHash string) bool {
	return previousHash == "" || newHash != previousHash
}

var validExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
}

// InferExtension picks a file extension from the source url path, then from
// the response content type, falling back to jpg.
func InferExtension(sourceURL, contentType string) string {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if validExtensions[ext] {
		if ext == "jpeg" {
			return "jpg"
		}
		return ext
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpg"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "bmp"):
		return "bmp"
	}
	return "jpg"
}

// ObjectPath names the stored object so identical bytes always map to the
// same path for a remnant.
func ObjectPath(remnantID int, hash, ext string) string {
	return fmt.Sprintf("%d_%s.%s", remnantID, hash, ext)
}
