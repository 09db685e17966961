// Package mimetype maps file extensions to MIME content types for object
// uploads. The table is fixed so that the same file always gets the same
// content type regardless of the host's mime registry.
package mimetype

import (
	"path/filepath"
	"strings"
)

// DefaultContentType is returned for unknown or missing extensions.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".txt":  "text/plain",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
}

// Resolve returns the MIME content type for a file path based on its
// extension. Lookup is case-insensitive. It never fails: paths with no
// extension or an unrecognized one resolve to DefaultContentType.
func Resolve(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return DefaultContentType
}
