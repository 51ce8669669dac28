package wav

import (
	"fmt"
	"os"
	"time"

	gowav "github.com/go-audio/wav"

	"github.com/audiolibrelab/wavrec/internal/audio"
)

// Info describes a WAV file on disk
type Info struct {
	Path         string        `json:"path" yaml:"path"`
	Format       audio.Format  `json:"format" yaml:"format"`
	TypeCode     uint16        `json:"type_code" yaml:"type_code"`
	BitDepth     uint16        `json:"bit_depth" yaml:"bit_depth"`
	PayloadBytes int64         `json:"payload_bytes" yaml:"payload_bytes"`
	FileSize     int64         `json:"file_size" yaml:"file_size"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Inspect reads the header of a WAV file
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	// IsValidFile rejects empty recordings, so check the header by hand
	d := gowav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("not a valid WAV file: %s: %w", path, err)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate WAV data: %w", err)
	}

	info := &Info{
		Path:         path,
		TypeCode:     d.WavAudioFormat,
		BitDepth:     d.BitDepth,
		PayloadBytes: d.PCMLen(),
		FileSize:     stat.Size(),
		Format: audio.Format{
			SampleRate: d.SampleRate,
			Channels:   uint8(d.NumChans),
			Encoding:   encodingFor(d.WavAudioFormat, d.BitDepth),
		},
	}
	if d.AvgBytesPerSec > 0 {
		info.Duration = time.Duration(float64(info.PayloadBytes) / float64(d.AvgBytesPerSec) * float64(time.Second))
	}
	return info, nil
}

func encodingFor(typeCode, bitDepth uint16) audio.Encoding {
	switch {
	case typeCode == audio.TypeCodeIEEEFloat && bitDepth == 32:
		return audio.EncodingFloat32
	case typeCode != audio.TypeCodePCM:
		return audio.EncodingUnknown
	case bitDepth == 16:
		return audio.EncodingInt16
	case bitDepth == 24:
		return audio.EncodingInt24
	case bitDepth == 32:
		return audio.EncodingInt32
	default:
		return audio.EncodingUnknown
	}
}
