package media

import (
	"io"
	"strings"
)

// MediaType classifies the kind of media asset.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeFile  MediaType = "file"
)

// Classify maps a MIME content type to a MediaType.
func Classify(contentType string) MediaType {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(ct, "video/"):
		return MediaTypeVideo
	case strings.HasPrefix(ct, "audio/"):
		return MediaTypeAudio
	default:
		return MediaTypeFile
	}
}

// Payload is a fetched media body with its metadata.
// Caller must close Reader.
type Payload struct {
	Reader io.ReadCloser
	Mime   string
	Name   string
	// Size is the declared content length, -1 when unknown.
	Size int64
}
