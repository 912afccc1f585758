//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// Control id ranges scanned when the driver does not support
// V4L2_CTRL_FLAG_NEXT_CTRL.
var controlScanRanges = [][2]uint32{
	{0x00980900, 0x0098092b}, // user class
	{0x009a0900, 0x009a0924}, // camera class
}

// Controls enumerates the device controls. Control class headers are skipped.
func (d *Device) Controls() ([]ControlInfo, error) {
	var controls []ControlInfo

	q := v4l2Queryctrl{id: ctrlFlagNextCtrl}
	for {
		err := ioctl(d.fd, vidiocQueryctrl, unsafe.Pointer(&q))
		if err != nil {
			if !errors.Is(err, syscall.EINVAL) {
				return nil, fmt.Errorf("query controls: %w", err)
			}
			if controls == nil {
				return d.scanControls()
			}
			break
		}
		if info := controlFromQuery(&q); keepControl(info) {
			controls = append(controls, info)
		}
		q = v4l2Queryctrl{id: q.id | ctrlFlagNextCtrl}
	}

	return controls, nil
}

func (d *Device) scanControls() ([]ControlInfo, error) {
	var controls []ControlInfo
	for _, r := range controlScanRanges {
		for id := r[0]; id < r[1]; id++ {
			info, err := d.QueryControl(id)
			if err != nil {
				if errors.Is(err, syscall.EINVAL) {
					continue
				}
				return nil, err
			}
			if keepControl(info) {
				controls = append(controls, info)
			}
		}
	}
	return controls, nil
}

func keepControl(info ControlInfo) bool {
	return info.Type != CtrlTypeCtrlClass && info.Flags&CtrlFlagDisabled == 0
}

// QueryControl describes a single control.
func (d *Device) QueryControl(id uint32) (ControlInfo, error) {
	q := v4l2Queryctrl{id: id}
	if err := ioctl(d.fd, vidiocQueryctrl, unsafe.Pointer(&q)); err != nil {
		return ControlInfo{}, fmt.Errorf("query control 0x%08x: %w", id, err)
	}
	return controlFromQuery(&q), nil
}

func controlFromQuery(q *v4l2Queryctrl) ControlInfo {
	return ControlInfo{
		ID:      q.id,
		Type:    ControlType(q.typ),
		Name:    cstr(q.name[:]),
		Min:     q.minimum,
		Max:     q.maximum,
		Step:    q.step,
		Default: q.defaultValue,
		Flags:   q.flags,
	}
}

// QueryMenu lists the entries of a menu or integer menu control. Indices the
// driver skips are left out.
func (d *Device) QueryMenu(ctrl ControlInfo) ([]MenuItem, error) {
	if ctrl.Type != CtrlTypeMenu && ctrl.Type != CtrlTypeIntegerMenu {
		return nil, fmt.Errorf("control 0x%08x is not a menu: %w", ctrl.ID, syscall.EINVAL)
	}

	var items []MenuItem
	for i := ctrl.Min; i <= ctrl.Max && i >= 0; i++ {
		m := v4l2Querymenu{id: ctrl.ID, index: uint32(i)}
		if err := ioctl(d.fd, vidiocQuerymenu, unsafe.Pointer(&m)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				continue
			}
			return nil, fmt.Errorf("query menu 0x%08x[%d]: %w", ctrl.ID, i, err)
		}
		item := MenuItem{Index: m.index}
		if ctrl.Type == CtrlTypeIntegerMenu {
			item.Value = m.value()
			item.Name = fmt.Sprintf("%d", item.Value)
		} else {
			item.Name = cstr(m.name[:])
		}
		items = append(items, item)
	}
	return items, nil
}

// GetControl reads the current value of a control.
func (d *Device) GetControl(id uint32) (int32, error) {
	c := v4l2Control{id: id}
	if err := ioctl(d.fd, vidiocGCtrl, unsafe.Pointer(&c)); err != nil {
		return 0, fmt.Errorf("get control 0x%08x: %w", id, err)
	}
	return c.value, nil
}

// SetControl writes a control value.
func (d *Device) SetControl(id uint32, value int32) error {
	c := v4l2Control{id: id, value: value}
	if err := ioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&c)); err != nil {
		return fmt.Errorf("set control 0x%08x=%d: %w", id, value, err)
	}
	return nil
}
