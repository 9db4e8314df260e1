package media

import "errors"

var (
	// ErrAssetTooLarge indicates the payload exceeds the configured max asset size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrSourceUnavailable indicates the source URL could not be fetched.
	ErrSourceUnavailable = errors.New("media source unavailable")
)
