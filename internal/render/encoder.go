package render

import "context"

// Encoder turns a job into a media file and returns the produced path.
// Implementations must stop promptly and leave no running processes when ctx
// is done.
type Encoder interface {
	Encode(ctx context.Context, job Job) (string, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ctx context.Context, job Job) (string, error)

// Encode calls f.
func (f EncoderFunc) Encode(ctx context.Context, job Job) (string, error) {
	return f(ctx, job)
}
