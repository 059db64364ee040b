// Package wavio reads and writes PCM WAV files as interleaved float32
// samples in [-1, 1].
package wavio

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidFile is returned for input that is not a PCM WAV file.
var ErrInvalidFile = errors.New("wavio: not a valid wav file")

const pcmFormat = 1

// Reader decodes a WAV stream chunk by chunk.
type Reader struct {
	dec        *wav.Decoder
	buf        *audio.IntBuffer
	scale      float32
	Channels   int
	SampleRate int
	BitDepth   int
}

// NewReader reads the header of r and prepares chunks of chunkFrames frames.
func NewReader(r io.ReadSeeker, chunkFrames int) (*Reader, error) {
	if chunkFrames <= 0 {
		return nil, fmt.Errorf("wavio: chunk frames must be positive, got %d", chunkFrames)
	}
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidFile, dec.WavAudioFormat)
	}
	format := dec.Format()
	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidFile, depth)
	}
	return &Reader{
		dec: dec,
		buf: &audio.IntBuffer{
			Format:         format,
			Data:           make([]int, chunkFrames*format.NumChannels),
			SourceBitDepth: depth,
		},
		scale:      1 / float32(int64(1)<<(depth-1)),
		Channels:   format.NumChannels,
		SampleRate: int(dec.SampleRate),
		BitDepth:   depth,
	}, nil
}

// Read returns the next chunk, or io.EOF after the last one. The final chunk
// may be shorter.
func (r *Reader) Read() ([]float32, error) {
	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	out := make([]float32, n)
	offset := 0
	if r.BitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
	}
	for i, v := range r.buf.Data[:n] {
		out[i] = float32(v-offset) * r.scale
	}
	return out, nil
}

// Writer encodes interleaved float32 samples as PCM.
type Writer struct {
	enc      *wav.Encoder
	format   *audio.Format
	bitDepth int
	max      float32
}

// NewWriter starts a PCM stream on w. Close must be called to patch the
// header sizes.
func NewWriter(w io.WriteSeeker, sampleRate, bitDepth, channels int) (*Writer, error) {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("wavio: unsupported bit depth %d", bitDepth)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("wavio: invalid format rate=%d channels=%d", sampleRate, channels)
	}
	return &Writer{
		enc:      wav.NewEncoder(w, sampleRate, bitDepth, channels, pcmFormat),
		format:   &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		bitDepth: bitDepth,
		max:      float32(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

// Write clamps samples to [-1, 1] and appends them.
func (w *Writer) Write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if len(samples)%w.format.NumChannels != 0 {
		return fmt.Errorf("wavio: %d samples is not a whole number of %d-channel frames", len(samples), w.format.NumChannels)
	}
	data := make([]int, len(samples))
	for i, v := range samples {
		v = min(max(v, -1), 1)
		data[i] = int(v * w.max)
	}
	return w.enc.Write(&audio.IntBuffer{
		Format:         w.format,
		Data:           data,
		SourceBitDepth: w.bitDepth,
	})
}

func (w *Writer) Close() error {
	return w.enc.Close()
}
