//go:build linux && (amd64 || arm64)

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) capture
// API: device enumeration, format negotiation, controls and memory mapped
// streaming.
//
// This package does not use cgo. Struct layouts target 64-bit Linux.
//
// # Device Enumeration
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Capture
//
//	dev, _ := v4l2.OpenDevice("/dev/video0")
//	defer dev.Close()
//	dev.SetFormat(v4l2.Format{Width: 1280, Height: 720, PixelFormat: v4l2.PixFmtMJPEG})
//	dev.StartStreaming(4)
//	frame, _ := dev.ReadFrame(2 * time.Second)
//	dev.StopStreaming()
package v4l2
