package query

import (
	"errors"

	"github.com/jonwraymond/datahub/frame"
)

// ErrEmptyResult indicates a query returned neither a frame nor a payload.
var ErrEmptyResult = errors.New("query: empty result")

// Result is what a query returns: a frame, an already encoded payload, or
// both. Encoded payloads (for example a cache hit) are passed through to the
// wire unchanged and only decoded when a caller asks for the frame.
type Result struct {
	frame   *frame.Frame
	encoded []byte
}

// FrameResult wraps a live frame.
func FrameResult(f *frame.Frame) Result {
	return Result{frame: f}
}

// EncodedResult wraps a payload produced by frame.Encode.
func EncodedResult(payload []byte) Result {
	return Result{encoded: payload}
}

// Both wraps a frame together with its encoding.
func Both(f *frame.Frame, payload []byte) Result {
	return Result{frame: f, encoded: payload}
}

// IsZero reports whether r carries nothing.
func (r Result) IsZero() bool {
	return r.frame == nil && r.encoded == nil
}

// IsEncoded reports whether r carries an encoded payload.
func (r Result) IsEncoded() bool {
	return r.encoded != nil
}

// Frame returns the frame, decoding the payload if needed.
func (r Result) Frame() (*frame.Frame, error) {
	if r.frame != nil {
		return r.frame, nil
	}
	if r.encoded == nil {
		return nil, ErrEmptyResult
	}
	return frame.Decode(r.encoded)
}

// Bytes returns the encoded payload, encoding the frame if needed.
func (r Result) Bytes() ([]byte, error) {
	if r.encoded != nil {
		return r.encoded, nil
	}
	if r.frame == nil {
		return nil, ErrEmptyResult
	}
	return frame.Encode(r.frame)
}

// Encode returns r with its encoded payload attached, so later calls to Bytes
// do not encode again.
func (r Result) Encode() (Result, error) {
	payload, err := r.Bytes()
	if err != nil {
		return Result{}, err
	}
	return Result{frame: r.frame, encoded: payload}, nil
}
