package audio

import "errors"

var (
	// ErrDeviceInit is returned when the audio subsystem or device cannot be initialised
	ErrDeviceInit = errors.New("device initialisation failed")
	// ErrUnsupportedFormat is returned when a negotiated format cannot be written as WAV
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	// ErrCaptureIO is carried by an error message when a device read fails mid-stream
	ErrCaptureIO = errors.New("capture read failed")
)

// MessageKind discriminates the variants of Message
type MessageKind int

const (
	MessageData MessageKind = iota
	MessageError
)

func (k MessageKind) String() string {
	if k == MessageError {
		return "error"
	}
	return "data"
}

// Message is what a capture source sends to the processing loop: either a
// chunk of frames or a terminal error.
type Message struct {
	Kind MessageKind
	Data []byte
	Err  error
}

// DataMessage wraps a chunk. The chunk must not be modified after sending.
func DataMessage(chunk []byte) Message {
	return Message{Kind: MessageData, Data: chunk}
}

func ErrorMessage(err error) Message {
	return Message{Kind: MessageError, Err: err}
}
