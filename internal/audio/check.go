// Package audio validates meeting recordings before they are sent to a
// speech-to-text service.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var DefaultFormats = []string{".mp3", ".wav", ".m4a", ".flac"}

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrTooLong           = errors.New("audio exceeds maximum duration")
	ErrSilent            = errors.New("no speech detected")
)

type Limits struct {
	Formats     []string
	MaxDuration time.Duration
	// SilenceDBFS enables the silent-recording check for WAV input when
	// non-zero.
	SilenceDBFS float64
}

// Check verifies that path is a readable file of a supported format. WAV
// files are additionally inspected for length and silence; other formats are
// passed through to the transcription service as-is.
func Check(path string, limits Limits) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("audio path %s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio file %s is empty", path)
	}

	formats := limits.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(formats, ext) {
		return fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(formats, ", "))
	}
	if ext != ".wav" {
		return nil
	}

	wav, err := InspectWAV(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if limits.MaxDuration > 0 && wav.Duration > limits.MaxDuration {
		return fmt.Errorf("%w: %s > %s", ErrTooLong, wav.Duration.Round(time.Second), limits.MaxDuration)
	}
	if limits.SilenceDBFS != 0 && wav.Silent(limits.SilenceDBFS) {
		return fmt.Errorf("%w (rms %.1f dBFS, peak %.1f dBFS)", ErrSilent, wav.RMSdBFS, wav.PeakdBFS)
	}
	return nil
}
