package media

import (
	"fmt"
	"io"
)

// LimitReader wraps reader so that reading past maxBytes fails with
// ErrAssetTooLarge instead of silently truncating. Used when the payload is
// streamed rather than buffered.
func LimitReader(reader io.Reader, maxBytes int64) io.Reader {
	return &limitReader{r: reader, remaining: maxBytes, max: maxBytes}
}

type limitReader struct {
	r         io.Reader
	remaining int64
	max       int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, l.max)
	}
	// Allow one byte past the limit so an exact-size body still reaches EOF.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n + int(l.remaining), fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, l.max)
	}
	return n, err
}
