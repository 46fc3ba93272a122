package protocol

import (
	"bytes"
	"fmt"
)

// MaxFrameSize - a partial frame growing past this many bytes is discarded.
const MaxFrameSize = 64 * 1024

const delimiter = '\n'

// Frame - encodes msg and terminates it with a newline. JSON output never contains a raw newline.
func Frame(msg Message) ([]byte, error) {
	data, err := Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to frame message: %w", err)
	}

	return append(data, delimiter), nil
}

// FrameBuffer reassembles newline-delimited frames from arbitrarily split chunks.
// It is not safe for concurrent use; each read loop owns one.
type FrameBuffer struct {
	pending   []byte
	discarded bool
}

// Feed - appends chunk and returns every frame it completed, without the delimiter.
// overflow reports that this chunk pushed a partial frame past MaxFrameSize; the rest
// of that frame, up to its delimiter, is skipped.
func (that *FrameBuffer) Feed(chunk []byte) (frames [][]byte, overflow bool) {
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, delimiter)
		if idx < 0 {
			overflow = that.append(chunk) || overflow
			break
		}

		overflow = that.append(chunk[:idx]) || overflow
		chunk = chunk[idx+1:]

		if that.discarded {
			that.discarded = false
			continue
		}

		frame := bytes.TrimSpace(that.pending)
		if len(frame) > 0 {
			frames = append(frames, bytes.Clone(frame))
		}
		that.pending = that.pending[:0]
	}

	return frames, overflow
}

// Buffered - bytes of the incomplete frame held so far.
func (that *FrameBuffer) Buffered() int {
	return len(that.pending)
}

// append - reports true when data made the frame too large and discarding started.
func (that *FrameBuffer) append(data []byte) bool {
	if that.discarded {
		return false
	}

	if len(that.pending)+len(data) > MaxFrameSize {
		that.pending = that.pending[:0]
		that.discarded = true
		return true
	}

	that.pending = append(that.pending, data...)
	return false
}
