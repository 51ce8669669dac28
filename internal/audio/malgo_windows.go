//go:build windows

package audio

import "github.com/gen2brain/malgo"

// WASAPI loopback records a render device, so render devices are listed
const (
	captureDeviceType = malgo.Loopback
	listingDeviceType = malgo.Playback
	listingPrefix     = "playback"
)
