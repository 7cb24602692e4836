package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const encodeBitDepth = 16

// Decode reads a WAV stream into a Waveform with samples scaled to [-1, 1].
func Decode(r io.ReadSeeker) (*Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a decodable wav file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || len(buf.Data) == 0 {
		return nil, errors.New("wav file contains no samples")
	}

	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = encodeBitDepth
	}
	// Full scale is the largest positive code, matching the encoder, so a
	// sample written at 1.0 reads back as exactly 1.0. The one extra
	// negative code clamps to -1.
	scale := float64(int64(1)<<(bitDepth-1)) - 1

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	data := make([][]float64, channels)
	for c := range data {
		data[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := float64(buf.Data[i*channels+c]) / scale
			if v < -1 {
				v = -1
			}
			data[c][i] = v
		}
	}

	return &Waveform{SampleRate: buf.Format.SampleRate, Data: data}, nil
}

// DecodeFile reads a WAV file from disk.
func DecodeFile(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// EncodeFile writes a Waveform to disk as 16-bit PCM WAV.
func EncodeFile(path string, w *Waveform) error {
	if w.Channels() == 0 || w.Len() == 0 {
		return errors.New("cannot encode empty waveform")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	channels := w.Channels()
	frames := w.Len()
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := w.Data[c][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			s := int(math.Round(v * 32767))
			data[i*channels+c] = s
		}
	}

	e := wav.NewEncoder(f, w.SampleRate, encodeBitDepth, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: encodeBitDepth,
	}
	if err := e.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav data: %w", err)
	}
	if err := e.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav file: %w", err)
	}
	return f.Close()
}

// ProbeFile checks that a file has a decodable WAV header without reading
// its sample data. Used to reject bad uploads before queueing work.
func ProbeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()

	if !wav.NewDecoder(f).IsValidFile() {
		return errors.New("not a decodable wav file")
	}
	return nil
}
