package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// WAVInfo describes the PCM payload of a WAV file.
type WAVInfo struct {
	Channels   int
	SampleRate int
	Duration   time.Duration
	RMSdBFS    float64
	PeakdBFS   float64
	Samples    int64
}

// Silent reports whether the recording stays below thresholdDBFS (RMS) with
// peaks no more than 6 dB above it.
func (i WAVInfo) Silent(thresholdDBFS float64) bool {
	if i.Samples == 0 {
		return true
	}
	if math.IsInf(i.RMSdBFS, -1) && math.IsInf(i.PeakdBFS, -1) {
		return true
	}
	return i.RMSdBFS <= thresholdDBFS && i.PeakdBFS <= thresholdDBFS+6
}

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	byteRate      uint32
	bitsPerSample uint16
}

func InspectWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	format, data, err := readWAVChunks(f)
	if err != nil {
		return WAVInfo{}, err
	}

	peak, sumSquares, samples, err := measureSamples(data, format.audioFormat, format.bitsPerSample)
	if err != nil {
		return WAVInfo{}, err
	}

	info := WAVInfo{
		Channels:   int(format.channels),
		SampleRate: int(format.sampleRate),
		Samples:    samples,
		RMSdBFS:    math.Inf(-1),
		PeakdBFS:   math.Inf(-1),
	}
	if format.byteRate > 0 {
		info.Duration = time.Duration(float64(len(data)) / float64(format.byteRate) * float64(time.Second))
	}
	if samples > 0 {
		info.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples)))
		info.PeakdBFS = amplitudeToDBFS(peak)
	}
	return info, nil
}

func readWAVChunks(f io.ReadSeeker) (wavFormat, []byte, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return wavFormat{}, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return wavFormat{}, nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, nil, ErrInvalidWAV
	}

	var (
		format  wavFormat
		data    []byte
		hasFmt  bool
		hasData bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return wavFormat{}, nil, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])
		padded := int64(chunkSize) + int64(chunkSize%2)

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return wavFormat{}, nil, ErrInvalidWAV
			}
			buf := make([]byte, padded)
			if _, err := io.ReadFull(f, buf); err != nil {
				return wavFormat{}, nil, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			format = wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(buf[0:2]),
				channels:      binary.LittleEndian.Uint16(buf[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
				byteRate:      binary.LittleEndian.Uint32(buf[8:12]),
				bitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
			}
			hasFmt = true
		case "data":
			data = make([]byte, chunkSize)
			if _, err := io.ReadFull(f, data); err != nil {
				return wavFormat{}, nil, fmt.Errorf("read wav data: %w", err)
			}
			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return wavFormat{}, nil, fmt.Errorf("seek wav data padding: %w", err)
				}
			}
			hasData = true
		default:
			if _, err := f.Seek(padded, io.SeekCurrent); err != nil {
				return wavFormat{}, nil, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return wavFormat{}, nil, ErrInvalidWAV
	}
	if err := validateFormat(format.audioFormat, format.bitsPerSample); err != nil {
		return wavFormat{}, nil, err
	}
	return format, data, nil
}

func validateFormat(audioFormat, bitsPerSample uint16) error {
	switch audioFormat {
	case 1:
		switch bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case 3:
		switch bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

func measureSamples(data []byte, audioFormat, bitsPerSample uint16) (float64, float64, int64, error) {
	bytesPerSample := int(bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return 0, 0, 0, ErrUnsupportedWAV
	}

	var peak, sumSquares float64
	var samples int64
	for i := 0; i+bytesPerSample <= len(data); i += bytesPerSample {
		value, err := decodeSample(data[i:i+bytesPerSample], audioFormat, bitsPerSample)
		if err != nil {
			return 0, 0, 0, err
		}
		if abs := math.Abs(value); abs > peak {
			peak = abs
		}
		sumSquares += value * value
		samples++
	}
	return peak, sumSquares, samples, nil
}

func decodeSample(sample []byte, audioFormat, bitsPerSample uint16) (float64, error) {
	if audioFormat == 3 {
		switch bitsPerSample {
		case 32:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(sample))), nil
		case 64:
			return math.Float64frombits(binary.LittleEndian.Uint64(sample)), nil
		default:
			return 0, ErrUnsupportedWAV
		}
	}

	switch bitsPerSample {
	case 8:
		return (float64(sample[0]) - 128.0) / 128.0, nil
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(sample))) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0, nil
	case 32:
		return float64(int32(binary.LittleEndian.Uint32(sample))) / 2147483648.0, nil
	default:
		return 0, ErrUnsupportedWAV
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
