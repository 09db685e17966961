package mimetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.txt", "text/plain"},
		{"b.json", "application/json"},
		{"c.png", "image/png"},
		{"photo.JPG", "image/jpeg"},
		{"photo.JPEG", "image/jpeg"},
		{"page.html", "text/html"},
		{"style.css", "text/css"},
		{"app.js", "application/javascript"},
		{"report.pdf", "application/pdf"},
		{"sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"bundle.tar", "application/x-tar"},
		{"bundle.gz", "application/gzip"},
		{"/some/dir/nested.xml", "application/xml"},
		{"noextension", DefaultContentType},
		{"weird.xyz", DefaultContentType},
		{"", DefaultContentType},
		{"trailingdot.", DefaultContentType},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Resolve(tc.path), "path %q", tc.path)
	}
}
