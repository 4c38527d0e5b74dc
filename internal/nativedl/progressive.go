package nativedl

import (
	"context"
	"errors"
	"io"
)

const copyBufferSize = 64 * 1024

func (d *Downloader) downloadProgressive(ctx context.Context, req Request, out *meter) (Result, error) {
	f, err := d.get(ctx, req.URL, req.Headers)
	if err != nil {
		return Result{}, err
	}
	defer f.close()

	buf := make([]byte, copyBufferSize)
	for {
		chunk := buf
		if req.Segment.Duration <= 0 && req.Segment.Size > 0 {
			remaining := req.Segment.Size - out.n
			if remaining <= 0 {
				return Result{Reason: StopSize}, nil
			}
			if remaining < int64(len(chunk)) {
				chunk = chunk[:remaining]
			}
		}
		n, readErr := f.resp.Body.Read(chunk)
		if n > 0 {
			if _, err := out.Write(chunk[:n]); err != nil {
				return Result{}, writeError(err)
			}
		}
		if req.Segment.Duration > 0 && d.now().Sub(out.start) >= req.Segment.Duration {
			return Result{Reason: StopDuration}, nil
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return Result{Reason: StopEnded}, nil
			}
			return Result{}, f.err(ctx, req.URL, readErr)
		}
	}
}
