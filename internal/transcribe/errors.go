package transcribe

import "errors"

// ErrPayloadTooLarge indicates a fetched payload exceeded the configured size
// cap. Fatal for the operation; never retried.
var ErrPayloadTooLarge = errors.New("payload exceeds configured size limit")

// PermanentError marks a failure that will not succeed on retry, such as a
// malformed request or a provider 4xx. The retry loop fails fast on these.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retry loop gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked as non-retryable.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrPayloadTooLarge) {
		return true
	}
	var perm *PermanentError
	return errors.As(err, &perm)
}
