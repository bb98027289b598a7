package errcode

const (
	ErrUnknown = 20000000 + iota
	ErrInvalid
	ErrNotFound
	ErrTooMany
	ErrInternal
	ErrStorageFailed
	ErrIndexFailed
	ErrSearchFailed
	ErrWatchFailed
	ErrProviderUnavailable
)
