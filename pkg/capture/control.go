package capture

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// KnownCameraControl identifies a hardware control independently of the
// backend that exposes it.
type KnownCameraControl uint32

// Known controls.
const (
	ControlBrightness KnownCameraControl = iota + 1
	ControlContrast
	ControlHue
	ControlSaturation
	ControlSharpness
	ControlGamma
	ControlWhiteBalance
	ControlBacklightComp
	ControlGain
	ControlPan
	ControlTilt
	ControlZoom
	ControlExposure
	ControlIris
	ControlFocus
)

const controlOtherFlag KnownCameraControl = 1 << 31

var controlNames = map[KnownCameraControl]string{
	ControlBrightness:    "brightness",
	ControlContrast:      "contrast",
	ControlHue:           "hue",
	ControlSaturation:    "saturation",
	ControlSharpness:     "sharpness",
	ControlGamma:         "gamma",
	ControlWhiteBalance:  "white_balance",
	ControlBacklightComp: "backlight_compensation",
	ControlGain:          "gain",
	ControlPan:           "pan",
	ControlTilt:          "tilt",
	ControlZoom:          "zoom",
	ControlExposure:      "exposure",
	ControlIris:          "iris",
	ControlFocus:         "focus",
}

// KnownControls returns every named control in declaration order.
func KnownControls() []KnownCameraControl {
	out := make([]KnownCameraControl, 0, len(controlNames))
	for c := ControlBrightness; c <= ControlFocus; c++ {
		out = append(out, c)
	}
	return out
}

// ControlOther wraps a backend-specific control id.
func ControlOther(id uint32) KnownCameraControl {
	return controlOtherFlag | KnownCameraControl(id&^uint32(controlOtherFlag))
}

// IsOther reports whether c is a backend-specific control.
func (c KnownCameraControl) IsOther() bool {
	return c&controlOtherFlag != 0
}

// OtherID returns the backend-specific id of an Other control.
func (c KnownCameraControl) OtherID() uint32 {
	return uint32(c &^ controlOtherFlag)
}

func (c KnownCameraControl) String() string {
	if c.IsOther() {
		return fmt.Sprintf("other:0x%08x", c.OtherID())
	}
	if name, ok := controlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("control(%d)", uint32(c))
}

// ParseKnownControl accepts a control name ("brightness") or "other:0x..".
func ParseKnownControl(s string) (KnownCameraControl, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if rest, ok := strings.CutPrefix(s, "other:"); ok {
		id, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return 0, WrapError(ErrInvalidControlValue, "parse", fmt.Sprintf("invalid control id %q", rest), err)
		}
		return ControlOther(uint32(id)), nil
	}
	s = strings.ReplaceAll(s, "-", "_")
	for c, name := range controlNames {
		if name == s {
			return c, nil
		}
	}
	return 0, NewError(ErrInvalidControlValue, "parse", fmt.Sprintf("unknown control %q", s))
}

// MarshalText implements encoding.TextMarshaler.
func (c KnownCameraControl) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *KnownCameraControl) UnmarshalText(text []byte) error {
	parsed, err := ParseKnownControl(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ControlKind is the type of value a control holds.
type ControlKind string

// Control kinds.
const (
	ControlKindInteger ControlKind = "integer"
	ControlKindBoolean ControlKind = "boolean"
	ControlKindEnum    ControlKind = "enum"
	ControlKindBytes   ControlKind = "bytes"
)

// ControlValue is a tagged control value, used both to report the current
// value of a control and to request a new one.
type ControlValue struct {
	Kind    ControlKind `json:"kind"`
	Integer int64       `json:"integer,omitempty"`
	Boolean bool        `json:"boolean,omitempty"`
	Enum    int64       `json:"enum,omitempty"`
	Bytes   []byte      `json:"bytes,omitempty"`
}

// IntegerValue returns an integer ControlValue.
func IntegerValue(v int64) ControlValue {
	return ControlValue{Kind: ControlKindInteger, Integer: v}
}

// BoolValue returns a boolean ControlValue.
func BoolValue(v bool) ControlValue {
	return ControlValue{Kind: ControlKindBoolean, Boolean: v}
}

// EnumValue returns a ControlValue selecting a menu entry.
func EnumValue(index int64) ControlValue {
	return ControlValue{Kind: ControlKindEnum, Enum: index}
}

// BytesValue returns a ControlValue carrying a copy of b.
func BytesValue(b []byte) ControlValue {
	return ControlValue{Kind: ControlKindBytes, Bytes: slices.Clone(b)}
}

// Int returns the value as an integer, mapping booleans to 0 and 1.
func (v ControlValue) Int() int64 {
	switch v.Kind {
	case ControlKindBoolean:
		if v.Boolean {
			return 1
		}
		return 0
	case ControlKindEnum:
		return v.Enum
	default:
		return v.Integer
	}
}

// Equal reports whether two values are identical.
func (v ControlValue) Equal(o ControlValue) bool {
	return v.Kind == o.Kind && v.Integer == o.Integer && v.Boolean == o.Boolean &&
		v.Enum == o.Enum && slices.Equal(v.Bytes, o.Bytes)
}

func (v ControlValue) String() string {
	switch v.Kind {
	case ControlKindBoolean:
		return strconv.FormatBool(v.Boolean)
	case ControlKindEnum:
		return fmt.Sprintf("enum(%d)", v.Enum)
	case ControlKindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.Bytes))
	default:
		return strconv.FormatInt(v.Integer, 10)
	}
}

// ParseControlValue interprets s according to kind. Enum values may be given
// as a menu index or as a menu entry name.
func ParseControlValue(kind ControlKind, s string, menu []MenuEntry) (ControlValue, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case ControlKindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return ControlValue{}, WrapError(ErrInvalidControlValue, "parse", fmt.Sprintf("invalid boolean %q", s), err)
		}
		return BoolValue(b), nil
	case ControlKindEnum:
		for _, m := range menu {
			if strings.EqualFold(m.Name, s) {
				return EnumValue(m.Index), nil
			}
		}
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return ControlValue{}, WrapError(ErrInvalidControlValue, "parse", fmt.Sprintf("invalid menu entry %q", s), err)
		}
		return EnumValue(n), nil
	case ControlKindBytes:
		return BytesValue([]byte(s)), nil
	default:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return ControlValue{}, WrapError(ErrInvalidControlValue, "parse", fmt.Sprintf("invalid integer %q", s), err)
		}
		return IntegerValue(n), nil
	}
}

// ControlFlags describes how a control may be used.
type ControlFlags uint32

// Control flags.
const (
	ControlFlagDisabled ControlFlags = 1 << iota
	ControlFlagReadOnly
	ControlFlagWriteOnly
	ControlFlagInactive
	ControlFlagVolatile
)

// Has reports whether all bits of flag are set.
func (f ControlFlags) Has(flag ControlFlags) bool {
	return f&flag == flag
}

// Names returns the set flag names.
func (f ControlFlags) Names() []string {
	var names []string
	for _, e := range []struct {
		flag ControlFlags
		name string
	}{
		{ControlFlagDisabled, "disabled"},
		{ControlFlagReadOnly, "read-only"},
		{ControlFlagWriteOnly, "write-only"},
		{ControlFlagInactive, "inactive"},
		{ControlFlagVolatile, "volatile"},
	} {
		if f.Has(e.flag) {
			names = append(names, e.name)
		}
	}
	return names
}

// MenuEntry is one selectable value of an enum control.
type MenuEntry struct {
	Index int64  `json:"index"`
	Name  string `json:"name"`
}

// CameraControl describes a control as reported by the backend.
type CameraControl struct {
	ID      KnownCameraControl `json:"id"`
	Name    string             `json:"name"`
	Kind    ControlKind        `json:"kind"`
	Current ControlValue       `json:"current"`
	Min     int64              `json:"min"`
	Max     int64              `json:"max"`
	Step    int64              `json:"step"`
	Default int64              `json:"default"`
	Menu    []MenuEntry        `json:"menu,omitempty"`
	Flags   ControlFlags       `json:"flags"`
}

// Value returns the current value.
func (c CameraControl) Value() ControlValue {
	return c.Current
}

// Active reports whether the control is usable now.
func (c CameraControl) Active() bool {
	return !c.Flags.Has(ControlFlagDisabled) && !c.Flags.Has(ControlFlagInactive)
}

// Validate checks v against the control's kind and bounds. It never touches
// a backend.
func (c CameraControl) Validate(v ControlValue) error {
	invalid := func(format string, args ...any) error {
		return NewError(ErrInvalidControlValue, "validate", fmt.Sprintf("%s: ", c.ID)+fmt.Sprintf(format, args...))
	}
	if c.Flags.Has(ControlFlagReadOnly) {
		return invalid("control is read-only")
	}
	if c.Flags.Has(ControlFlagDisabled) {
		return invalid("control is disabled")
	}
	if v.Kind != c.Kind {
		return invalid("expected %s value, got %s", c.Kind, v.Kind)
	}
	switch v.Kind {
	case ControlKindBoolean:
		return nil
	case ControlKindEnum:
		if len(c.Menu) > 0 && !slices.ContainsFunc(c.Menu, func(m MenuEntry) bool { return m.Index == v.Enum }) {
			return invalid("menu entry %d does not exist", v.Enum)
		}
		return c.checkRange(v.Enum, invalid)
	case ControlKindBytes:
		if c.Max > 0 && int64(len(v.Bytes)) > c.Max {
			return invalid("payload of %d bytes exceeds %d", len(v.Bytes), c.Max)
		}
		return nil
	default:
		return c.checkRange(v.Integer, invalid)
	}
}

func (c CameraControl) checkRange(n int64, invalid func(string, ...any) error) error {
	if n < c.Min || n > c.Max {
		return invalid("value %d outside [%d, %d]", n, c.Min, c.Max)
	}
	if c.Step > 1 && (n-c.Min)%c.Step != 0 {
		return invalid("value %d is not a multiple of step %d from %d", n, c.Step, c.Min)
	}
	return nil
}

// CheckBounds verifies that the reported current value honors the
// control's own bounds.
func (c CameraControl) CheckBounds() error {
	if c.Flags.Has(ControlFlagWriteOnly) {
		return nil
	}
	var n int64
	switch c.Current.Kind {
	case ControlKindInteger:
		n = c.Current.Integer
	case ControlKindEnum:
		n = c.Current.Enum
	default:
		return nil
	}
	if c.Min > c.Max {
		return NewError(ErrBackend, "controls", fmt.Sprintf("%s: min %d greater than max %d", c.ID, c.Min, c.Max))
	}
	if n < c.Min || n > c.Max {
		return NewError(ErrBackend, "controls", fmt.Sprintf("%s: reported value %d outside [%d, %d]", c.ID, n, c.Min, c.Max))
	}
	if c.Step > 1 && (n-c.Min)%c.Step != 0 {
		return NewError(ErrBackend, "controls", fmt.Sprintf("%s: reported value %d off step %d", c.ID, n, c.Step))
	}
	return nil
}
