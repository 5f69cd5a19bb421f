package transcribe

import (
	"fmt"
	"io"
)

// DefaultMaxPayloadBytes caps feed and transcript payloads at 50 MB.
// Hostile or malformed feeds must not be able to grow memory without bound.
const DefaultMaxPayloadBytes = int64(50 << 20)

// ReadLimited buffers body subject to a size cap. A declared length (e.g. a
// Content-Length header; pass a negative value when absent) above the cap is
// rejected before any byte is read. Because the declaration may be absent or
// understated, the buffered size is checked again after receipt, before the
// payload reaches any parser.
func ReadLimited(body io.Reader, declaredLength, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	if declaredLength > maxBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrPayloadTooLarge, declaredLength, maxBytes)
	}

	buf, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if int64(len(buf)) > maxBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrPayloadTooLarge, maxBytes)
	}
	return buf, nil
}
