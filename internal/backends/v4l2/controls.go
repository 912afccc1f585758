package v4l2

import "github.com/smazurov/camcap/pkg/capture"

// V4L2 control ids for the named controls. Values are from
// linux/v4l2-controls.h; absolute variants are used for camera-class controls.
var controlIDs = map[capture.KnownCameraControl]uint32{
	capture.ControlBrightness:    0x00980900,
	capture.ControlContrast:      0x00980901,
	capture.ControlSaturation:    0x00980902,
	capture.ControlHue:           0x00980903,
	capture.ControlGamma:         0x00980910,
	capture.ControlGain:          0x00980913,
	capture.ControlWhiteBalance:  0x0098091a,
	capture.ControlSharpness:     0x0098091b,
	capture.ControlBacklightComp: 0x0098091c,
	capture.ControlExposure:      0x009a0902,
	capture.ControlPan:           0x009a0908,
	capture.ControlTilt:          0x009a0909,
	capture.ControlFocus:         0x009a090a,
	capture.ControlZoom:          0x009a090d,
	capture.ControlIris:          0x009a0911,
}

var knownByID = func() map[uint32]capture.KnownCameraControl {
	m := make(map[uint32]capture.KnownCameraControl, len(controlIDs))
	for k, id := range controlIDs {
		m[id] = k
	}
	return m
}()

// controlID maps a control to its V4L2 id. Other controls carry the raw id.
func controlID(c capture.KnownCameraControl) (uint32, bool) {
	if c.IsOther() {
		return c.OtherID(), true
	}
	id, ok := controlIDs[c]
	return id, ok
}

// knownControl maps a V4L2 id back to a control, falling back to Other.
func knownControl(id uint32) capture.KnownCameraControl {
	if k, ok := knownByID[id]; ok {
		return k
	}
	return capture.ControlOther(id)
}
