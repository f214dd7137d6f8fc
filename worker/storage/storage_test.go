package storage

import "testing"

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"converted/j1.mp4", "video/mp4"},
		{"converted/j1.webm", "video/webm"},
		{"converted/j1.mkv", "video/x-matroska"},
		{"converted/j1.avi", "video/x-msvideo"},
		{"converted/j1.mov", "video/quicktime"},
		{"converted/j1.gif", "image/gif"},
		{"converted/j1.mp3", "audio/mpeg"},
		{"converted/j1.bin", "application/octet-stream"},
		{"converted/j1", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := ContentTypeFor(tt.path); got != tt.want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
