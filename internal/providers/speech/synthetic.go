package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	syntheticSampleRate  = 8000
	syntheticSecsPerWord = 0.3
	syntheticMinDuration = 500 * time.Millisecond
	syntheticMaxDuration = 8 * time.Second
)

// Synthetic produces silent WAV clips sized to the narration length so the
// full pipeline can run without any remote credentials.
type Synthetic struct{}

// NewSynthetic returns a keyless placeholder speaker.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Synthesize fulfils the Generator interface.
func (s *Synthetic) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("narration text is empty")
	}
	duration := estimateSpokenDuration(text)
	return &Clip{Data: renderSilentWAV(duration), MIME: "audio/wav"}, nil
}

func (s *Synthetic) Name() string {
	return "synthetic"
}

var _ Generator = (*Synthetic)(nil)

func estimateSpokenDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	duration := time.Duration(float64(words) * syntheticSecsPerWord * float64(time.Second))
	if duration < syntheticMinDuration {
		duration = syntheticMinDuration
	}
	if duration > syntheticMaxDuration {
		duration = syntheticMaxDuration
	}
	return duration
}

// renderSilentWAV emits a canonical 44-byte PCM header followed by silence:
// mono, 16-bit, 8 kHz.
func renderSilentWAV(duration time.Duration) []byte {
	samples := int(duration.Seconds() * syntheticSampleRate)
	if samples < 1 {
		samples = 1
	}
	dataLen := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(syntheticSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(syntheticSampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}
