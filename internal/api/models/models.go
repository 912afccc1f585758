// Package models holds the request and response bodies of the HTTP API.
package models

import "github.com/smazurov/camcap/internal/metrics"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-02T15:04:05Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// CameraPath addresses one camera.
type CameraPath struct {
	Index string `path:"index" example:"0" doc:"Camera index as reported by the camera list"`
}

// CameraData describes a discovered camera.
type CameraData struct {
	Index       string `json:"index" example:"0" doc:"Camera index"`
	Name        string `json:"name" example:"HD Pro Webcam C920" doc:"Human readable name"`
	Description string `json:"description" example:"uvcvideo" doc:"Driver or backend description"`
	Misc        string `json:"misc,omitempty" example:"usb-0000:00:14.0-1" doc:"Backend specific detail such as the bus location"`
	Backend     string `json:"backend" example:"v4l2" doc:"Backend that reported the camera"`
	Session     bool   `json:"session" example:"false" doc:"Whether a session is open for this camera"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Discovered cameras"`
	Count   int          `json:"count" example:"1" doc:"Number of cameras"`
}

type CameraListResponse struct {
	Body CameraListData
}

// FormatData is a single camera format.
type FormatData struct {
	Width     uint32  `json:"width" example:"1280" doc:"Frame width in pixels"`
	Height    uint32  `json:"height" example:"720" doc:"Frame height in pixels"`
	FourCC    string  `json:"fourcc" example:"MJPG" doc:"Frame encoding"`
	FrameRate string  `json:"frame_rate" example:"30" doc:"Frame rate as a reduced fraction"`
	FPS       float64 `json:"fps" example:"30" doc:"Frame rate in frames per second"`
	Display   string  `json:"display" example:"1280x720@30 MJPG" doc:"Format in request syntax"`
}

// SessionData describes an open session.
type SessionData struct {
	Camera CameraData    `json:"camera" doc:"Camera identity"`
	State  string        `json:"state" example:"closed" enum:"open,closed" doc:"Stream state"`
	Format FormatData    `json:"format" doc:"Active format"`
	Stats  metrics.Stats `json:"stats" doc:"Capture counters since the session opened"`
}

type SessionResponse struct {
	Body SessionData
}

type FormatListData struct {
	Formats []FormatData `json:"formats" doc:"Formats the camera offers, best first"`
	Count   int          `json:"count" example:"12" doc:"Number of formats"`
}

type FormatListResponse struct {
	Body FormatListData
}

type SetFormatRequest struct {
	CameraPath
	Body struct {
		Request string `json:"request" example:"closest:1280x720@30 MJPG" doc:"Format request: none, exact:F, closest:F, highest-resolution[:FPS] or highest-framerate[:WxH]"`
	}
}

// MenuEntryData is one choice of a menu control.
type MenuEntryData struct {
	Index int64  `json:"index" example:"1" doc:"Menu value"`
	Name  string `json:"name" example:"50 Hz" doc:"Menu label"`
}

// ControlData describes a camera control.
type ControlData struct {
	Control string          `json:"control" example:"brightness" doc:"Control name"`
	Name    string          `json:"name" example:"Brightness" doc:"Backend label"`
	Kind    string          `json:"kind" example:"integer" doc:"Value kind"`
	Value   string          `json:"value" example:"0" doc:"Current value"`
	Min     int64           `json:"min" example:"-64" doc:"Minimum value"`
	Max     int64           `json:"max" example:"64" doc:"Maximum value"`
	Step    int64           `json:"step" example:"1" doc:"Value step"`
	Default int64           `json:"default" example:"0" doc:"Default value"`
	Menu    []MenuEntryData `json:"menu,omitempty" doc:"Menu entries for menu controls"`
	Flags   []string        `json:"flags,omitempty" example:"[\"read-only\"]" doc:"Control flags"`
}

type ControlListData struct {
	Controls []ControlData `json:"controls" doc:"Controls the camera exposes"`
	Count    int           `json:"count" example:"8" doc:"Number of controls"`
}

type ControlListResponse struct {
	Body ControlListData
}

type ControlResponse struct {
	Body ControlData
}

type SetControlRequest struct {
	CameraPath
	Control string `path:"control" example:"brightness" doc:"Control name or other:0xID"`
	Body    struct {
		Value string `json:"value" example:"12" doc:"New value; menu controls also accept the entry name"`
	}
}

type StreamData struct {
	State string `json:"state" example:"open" enum:"open,closed" doc:"Stream state after the request"`
}

type StreamResponse struct {
	Body StreamData
}

type SnapshotRequest struct {
	CameraPath
	Quality int  `query:"quality" default:"85" minimum:"1" maximum:"100" doc:"JPEG quality"`
	Raw     bool `query:"raw" default:"false" doc:"Return the frame in its source encoding instead of JPEG"`
}

type SnapshotResponse struct {
	ContentType string `header:"Content-Type"`
	Sequence    string `header:"X-Frame-Sequence"`
	Format      string `header:"X-Frame-Format"`
	Body        []byte
}

type LogsRequest struct {
	Module string `query:"module" example:"capture" doc:"Only return entries from this module"`
	Level  string `query:"level" example:"warn" doc:"Only return entries at or above this level"`
	Camera string `query:"camera" example:"0" doc:"Only return entries about this camera"`
	Op     string `query:"op" example:"frame" doc:"Only return entries for this capture operation"`
	After  uint64 `query:"after" example:"120" doc:"Only return entries newer than this sequence number"`
}

type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"121" doc:"Sequence number, increasing"`
	Timestamp  string         `json:"timestamp" example:"2026-01-02T15:04:05.123Z" doc:"Entry time"`
	Level      string         `json:"level" example:"info" doc:"Entry level"`
	Module     string         `json:"module" example:"capture" doc:"Logger module"`
	Camera     string         `json:"camera,omitempty" example:"0" doc:"Camera the entry is about"`
	Op         string         `json:"op,omitempty" example:"frame" doc:"Capture operation that failed"`
	Message    string         `json:"message" example:"Stream opened" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Log entries, oldest first"`
	Count   int            `json:"count" example:"42" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}

type SetLevelRequest struct {
	Body struct {
		Module string `json:"module,omitempty" example:"capture" doc:"Module to change; empty changes the default level"`
		Level  string `json:"level" example:"debug" enum:"debug,info,warn,error" doc:"New level"`
	}
}

type SetLevelResponse struct {
	Body struct {
		Module string `json:"module" example:"capture" doc:"Module that was changed"`
		Level  string `json:"level" example:"debug" doc:"Level now in effect"`
	}
}
