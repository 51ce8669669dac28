//go:build !windows

package audio

import "github.com/gen2brain/malgo"

const (
	captureDeviceType = malgo.Capture
	listingDeviceType = malgo.Capture
	listingPrefix     = "capture"
)
