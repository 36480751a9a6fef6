package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	"finquery-client/internal/constant"
	"finquery-client/internal/dto"
	"finquery-client/internal/pkg/logger"
)

// FrameType discriminates decoded answer-stream frames.
type FrameType string

const (
	FrameToken FrameType = constant.FrameTypeToken
	FrameDone  FrameType = constant.FrameTypeDone
)

// Frame is one decoded unit of the answer stream.
type Frame struct {
	Type    FrameType
	Content string          // token text, set for FrameToken
	Sources []dto.SourceDTO // set for FrameDone
}

type framePayload struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Sources []dto.SourceDTO `json:"sources"`
}

// Decoder reassembles "data: " event lines from chunks arriving at
// arbitrary transport boundaries. A logical line may span several
// chunks, and one chunk may complete several lines.
type Decoder struct {
	carry  []byte
	logger logger.ILogger
}

func NewDecoder(log logger.ILogger) *Decoder {
	return &Decoder{logger: log}
}

// Feed appends a chunk and returns, in order, every frame it completed.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.carry = append(d.carry, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			break
		}
		line := d.carry[:idx]
		d.carry = d.carry[idx+1:]
		if f, ok := d.decodeLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Flush decodes an unterminated final line. Call once after EOF.
func (d *Decoder) Flush() []Frame {
	if len(d.carry) == 0 {
		return nil
	}
	line := d.carry
	d.carry = nil
	if f, ok := d.decodeLine(line); ok {
		return []Frame{f}
	}
	return nil
}

func (d *Decoder) decodeLine(line []byte) (Frame, bool) {
	text := strings.TrimRight(string(line), "\r")
	if !strings.HasPrefix(text, constant.DataLinePrefix) {
		// Keep-alive and comment lines carry no payload.
		return Frame{}, false
	}

	var payload framePayload
	if err := json.Unmarshal([]byte(text[len(constant.DataLinePrefix):]), &payload); err != nil {
		// One corrupt line must not abort the exchange.
		if d.logger != nil {
			d.logger.Warn("StreamDecoder", "Dropping malformed event line", map[string]interface{}{
				"line":  text,
				"error": err.Error(),
			})
		}
		return Frame{}, false
	}

	switch payload.Type {
	case constant.FrameTypeToken:
		return Frame{Type: FrameToken, Content: payload.Content}, true
	case constant.FrameTypeDone:
		return Frame{Type: FrameDone, Sources: payload.Sources}, true
	default:
		return Frame{}, false
	}
}
