// Package hotplug watches kernel uevents for camera nodes appearing and
// disappearing, without cgo or udev.
package hotplug

import (
	"bytes"
	"strconv"
	"strings"
)

// Action is the kernel uevent action.
type Action string

// Actions that matter for camera nodes. Others are passed through verbatim.
const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionChange Action = "change"
)

// SubsystemVideo4Linux is the uevent subsystem of /dev/videoN nodes.
const SubsystemVideo4Linux = "video4linux"

// Event is one parsed kernel uevent.
type Event struct {
	Action    Action
	KObj      string            // sysfs object path, e.g. /devices/pci0000:00/.../video4linux/video0
	Subsystem string            // e.g. video4linux
	DevName   string            // e.g. video0
	Seq       uint64            // SEQNUM, zero if absent
	Env       map[string]string // every KEY=VALUE pair
}

// Node returns the /dev path of the event's device node, or "" when the
// event carries no DEVNAME.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

// VideoIndex returns N for a video4linux "videoN" node.
func (e Event) VideoIndex() (uint32, bool) {
	if e.Subsystem != SubsystemVideo4Linux {
		return 0, false
	}
	n, ok := strings.CutPrefix(e.DevName, "video")
	if !ok {
		return 0, false
	}
	idx, err := strconv.ParseUint(n, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(idx), true
}

// Parse decodes a kernel uevent datagram of the form
// "ACTION@KOBJ\0KEY=VALUE\0...". Messages relayed by udevd carry a binary
// "libudev" header and are rejected.
func Parse(data []byte) (Event, bool) {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev")) {
		return Event{}, false
	}

	header, rest, _ := bytes.Cut(data, []byte{0})
	action, kobj, ok := strings.Cut(string(header), "@")
	if !ok || action == "" || kobj == "" {
		return Event{}, false
	}

	ev := Event{
		Action: Action(action),
		KObj:   kobj,
		Env:    make(map[string]string),
	}
	for field := range bytes.SplitSeq(rest, []byte{0}) {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		case "SEQNUM":
			ev.Seq, _ = strconv.ParseUint(value, 10, 64)
		}
	}
	return ev, true
}
