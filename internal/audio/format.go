package audio

import (
	"fmt"
	"strings"
)

// Encoding identifies how a single sample is represented on the wire
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingInt16
	EncodingInt24
	EncodingInt32
	EncodingFloat32
)

// WAV format tags
const (
	TypeCodePCM       uint16 = 1
	TypeCodeIEEEFloat uint16 = 3
)

// String returns the lowercase name used in configuration files and flags
func (e Encoding) String() string {
	switch e {
	case EncodingInt16:
		return "int16"
	case EncodingInt24:
		return "int24"
	case EncodingInt32:
		return "int32"
	case EncodingFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// BitDepth returns the bits per sample, 0 for an unknown encoding
func (e Encoding) BitDepth() uint16 {
	switch e {
	case EncodingInt16:
		return 16
	case EncodingInt24:
		return 24
	case EncodingInt32, EncodingFloat32:
		return 32
	default:
		return 0
	}
}

// TypeCode returns the WAV format tag for the encoding
func (e Encoding) TypeCode() uint16 {
	if e == EncodingFloat32 {
		return TypeCodeIEEEFloat
	}
	return TypeCodePCM
}

// ParseEncoding parses an encoding name. Empty input yields EncodingUnknown.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return EncodingUnknown, nil
	case "int16", "s16", "i16":
		return EncodingInt16, nil
	case "int24", "s24", "i24":
		return EncodingInt24, nil
	case "int32", "s32", "i32":
		return EncodingInt32, nil
	case "float32", "f32", "float":
		return EncodingFloat32, nil
	default:
		return EncodingUnknown, fmt.Errorf("invalid sample format: %s (must be int16, int24, int32 or float32)", s)
	}
}

// Format describes a negotiated PCM stream
type Format struct {
	SampleRate uint32   `json:"sample_rate" yaml:"sample_rate"`
	Channels   uint8    `json:"channels" yaml:"channels"`
	Encoding   Encoding `json:"encoding" yaml:"encoding"`
}

// NewFormat builds a validated Format
func NewFormat(sampleRate uint32, channels uint8, encoding Encoding) (Format, error) {
	f := Format{SampleRate: sampleRate, Channels: channels, Encoding: encoding}
	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// Validate checks the invariants every negotiated format must satisfy
func (f Format) Validate() error {
	if f.SampleRate == 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if f.Channels == 0 {
		return fmt.Errorf("channel count must be positive")
	}
	if f.Encoding.BitDepth() == 0 {
		return fmt.Errorf("%w: encoding %d", ErrUnsupportedFormat, int(f.Encoding))
	}
	return nil
}

func (f Format) BitDepth() uint16 { return f.Encoding.BitDepth() }

func (f Format) TypeCode() uint16 { return f.Encoding.TypeCode() }

// BlockAlign is the size in bytes of one frame (one sample for every channel)
func (f Format) BlockAlign() uint16 {
	return f.BitDepth() / 8 * uint16(f.Channels)
}

func (f Format) BytesPerSecond() uint32 {
	return f.SampleRate * uint32(f.BitDepth()/8) * uint32(f.Channels)
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s", f.SampleRate, f.Channels, f.Encoding)
}

// RequestedFormat holds optional format hints. A zero field means "use the
// device default".
type RequestedFormat struct {
	SampleRate uint32
	Channels   uint8
	Encoding   Encoding
}

// Resolve fills the unset fields from the device default
func (r RequestedFormat) Resolve(deviceDefault Format) Format {
	f := deviceDefault
	if r.SampleRate != 0 {
		f.SampleRate = r.SampleRate
	}
	if r.Channels != 0 {
		f.Channels = r.Channels
	}
	if r.Encoding != EncodingUnknown {
		f.Encoding = r.Encoding
	}
	return f
}
