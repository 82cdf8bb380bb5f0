// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"timegrapher/internal/config"
	applog "timegrapher/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files the WAV decoder cannot read as PCM.
var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// FileSource replays a WAV recording as a Source. Only the first channel is
// used. Blocks are delivered as fast as the consumer takes them, so a 30 second
// clip is analysed in well under a second.
type FileSource struct {
	path       string
	frames     int
	capture    config.CaptureConfig
	sampleRate float64
	numChans   int
	bitDepth   int

	mu   sync.Mutex
	file *os.File
	stop chan struct{}
	done chan struct{}
}

var _ Source = (*FileSource)(nil)

// NewFileSource validates the WAV header of path and records its format.
func NewFileSource(path string, cfg *config.Config) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	if dec.NumChans < 1 || dec.BitDepth == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %s has an empty format", ErrInvalidWAV, path)
	}

	return &FileSource{
		path:       path,
		frames:     cfg.Audio.FramesPerBuffer,
		capture:    cfg.Capture,
		sampleRate: float64(dec.SampleRate),
		numChans:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
	}, nil
}

// SampleRate returns the recording's sample rate in Hz.
func (s *FileSource) SampleRate() float64 {
	return s.sampleRate
}

// Start opens the file and streams conditioned blocks from a goroutine.
func (s *FileSource) Start() (<-chan Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil, ErrRunning
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
	}

	s.file = f
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	blocks := make(chan Block)
	go s.stream(dec, blocks, s.stop, s.done)

	applog.Infof("FileSource: Replaying %s (%.0f Hz, %d channel(s), %d-bit)", s.path, s.sampleRate, s.numChans, s.bitDepth)
	return blocks, nil
}

func (s *FileSource) stream(dec *wav.Decoder, blocks chan<- Block, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(blocks)

	cond := NewConditioner(s.sampleRate, s.capture.HighPassHz, s.capture.HighPassQ, s.capture.Gain)
	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: s.numChans, SampleRate: int(s.sampleRate)},
		Data:   make([]int, s.frames*s.numChans),
	}
	scale := float64(int64(1) << (s.bitDepth - 1))

	for {
		n, err := dec.PCMBuffer(pcm)
		if n == 0 || (err != nil && !errors.Is(err, io.EOF)) {
			if err != nil && !errors.Is(err, io.EOF) {
				applog.Errorf("FileSource: Decode error in %s: %v", s.path, err)
			}
			return
		}

		frames := n / s.numChans
		samples := make([]float32, frames)
		for i := range samples {
			samples[i] = float32(float64(pcm.Data[i*s.numChans]) / scale)
		}
		cond.Process(samples)

		select {
		case blocks <- Block{Samples: samples}:
		case <-stop:
			return
		}
	}
}

// Stop ends the replay and closes the file. The block channel is closed once
// the streaming goroutine has exited.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	close(s.stop)
	<-s.done

	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}
