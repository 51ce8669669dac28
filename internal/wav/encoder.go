package wav

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/wavrec/internal/audio"
)

const (
	// HeaderSize is the number of bytes written before the payload
	HeaderSize = 44

	// riffOverhead is what file_size counts besides the payload
	riffOverhead = HeaderSize - 8

	// MaxPayloadSize keeps file_size within a uint32
	MaxPayloadSize = math.MaxUint32 - riffOverhead
)

var (
	// ErrEncode wraps failures writing the destination file
	ErrEncode = errors.New("wav encode failed")
	// ErrPayloadTooLarge is returned when the sizes would overflow the header fields
	ErrPayloadTooLarge = errors.New("payload too large for wav")
)

// Header is the RIFF header and fmt chunk of a canonical WAV file
type Header struct {
	ChunkID       [4]byte
	FileSize      uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Data is the data chunk
type Data struct {
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
	Payload       []byte
}

// NewHeader builds the header for payloadLen bytes of audio in format
func NewHeader(format audio.Format, payloadLen int) (Header, error) {
	if payloadLen < 0 || uint64(payloadLen) > MaxPayloadSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		FileSize:      uint32(payloadLen) + riffOverhead,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   format.TypeCode(),
		NumChannels:   uint16(format.Channels),
		SampleRate:    format.SampleRate,
		ByteRate:      format.BytesPerSecond(),
		BlockAlign:    format.BlockAlign(),
		BitsPerSample: format.BitDepth(),
	}, nil
}

func NewData(payload []byte) Data {
	return Data{
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(payload)),
		Payload:       payload,
	}
}

// WriteTo writes the header in little-endian order
func (h Header) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	return HeaderSize - 8, nil
}

// WriteTo writes the chunk id, size and payload
func (d Data) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, d.Subchunk2ID); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, d.Subchunk2Size); err != nil {
		return 4, err
	}
	n, err := w.Write(d.Payload)
	return int64(8 + n), err
}

// Encode writes a complete WAV stream for payload to w
func Encode(w io.Writer, format audio.Format, payload []byte) error {
	header, err := NewHeader(format, len(payload))
	if err != nil {
		return err
	}
	if _, err := header.WriteTo(w); err != nil {
		return fmt.Errorf("%w: header: %v", ErrEncode, err)
	}
	if _, err := NewData(payload).WriteTo(w); err != nil {
		return fmt.Errorf("%w: data: %v", ErrEncode, err)
	}
	return nil
}

// WriteFile encodes payload into path. The file is written next to path under
// a temporary name and renamed into place, so path is either the old file or
// the complete new one.
func WriteFile(path string, format audio.Format, payload []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, format, payload); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	committed = true
	return nil
}
