package ingest

import (
	"context"
	"io"
	"log/slog"
)

// readChunkSize is the increment in which request bodies are pulled off
// the wire.
const readChunkSize = 1024

// maxZeroReads caps consecutive reads that return no data and no
// error; a client stuck in that state is treated as a transport
// failure rather than spinning the accumulate loop.
const maxZeroReads = 100

// BodyReceiver accumulates request bodies in memory up to a fixed
// byte limit.
type BodyReceiver struct {
	maximumBodySize int
	log             *slog.Logger
}

// NewBodyReceiver returns a receiver capped at maximumBodySize bytes,
// which must be positive.
func NewBodyReceiver(maximumBodySize int, log *slog.Logger) *BodyReceiver {
	if maximumBodySize <= 0 {
		panic("ingest: maximumBodySize must be positive")
	}
	return &BodyReceiver{maximumBodySize: maximumBodySize, log: log}
}

// Receive reads body off the caller's goroutine and delivers the result
// exactly once on the returned channel. A body that completes within
// the limit arrives whole; an over-limit body, a transport error or a
// cancelled context all deliver nil, which downstream parsing treats as
// an incomplete request. A partial body is never delivered.
func (r *BodyReceiver) Receive(ctx context.Context, body io.Reader) <-chan []byte {
	out := make(chan []byte, 1)
	go func() {
		out <- r.accumulate(ctx, body)
	}()
	return out
}

func (r *BodyReceiver) accumulate(ctx context.Context, body io.Reader) []byte {
	buf := make([]byte, 0, min(r.maximumBodySize, readChunkSize))
	chunk := make([]byte, readChunkSize)
	zeroReads := 0
	for {
		if ctx.Err() != nil {
			r.log.Error("request body read cancelled", "error", ctx.Err())
			return nil
		}
		n, err := body.Read(chunk)
		if n > 0 {
			zeroReads = 0
			if len(buf)+n > r.maximumBodySize {
				r.log.Warn("request body exceeded maximum size, discarded",
					"maximum_body_size", r.maximumBodySize)
				return nil
			}
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf
		}
		if err != nil {
			// Client gone or misbehaving; a failed read is not retried.
			r.log.Error("request body read failed", "error", err)
			return nil
		}
		if n == 0 {
			if zeroReads++; zeroReads >= maxZeroReads {
				r.log.Error("request body read made no progress, giving up")
				return nil
			}
		}
	}
}
