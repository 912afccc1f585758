//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"
)

// ErrTimeout is returned by ReadFrame when no buffer became ready in time.
var ErrTimeout = errors.New("timed out waiting for frame")

// ErrNotStreaming is returned by ReadFrame before StartStreaming.
var ErrNotStreaming = errors.New("device is not streaming")

// Streaming reports whether buffers are queued and the stream is on.
func (d *Device) Streaming() bool { return d.streaming }

// StartStreaming allocates count mmap buffers, queues them and turns the
// stream on. The driver may grant fewer buffers than requested.
func (d *Device) StartStreaming(count uint32) error {
	if d.streaming {
		return nil
	}

	req := v4l2Requestbuffers{count: count, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("request buffers: %w", err)
	}
	if req.count == 0 {
		return fmt.Errorf("request buffers: driver granted none: %w", syscall.ENOMEM)
	}

	for i := uint32(0); i < req.count; i++ {
		buf := v4l2Buffer{index: i, typ: bufTypeVideoCapture, memory: memoryMmap}
		if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			return errors.Join(fmt.Errorf("query buffer %d: %w", i, err), d.releaseBuffers())
		}
		data, err := syscall.Mmap(d.fd, int64(uint32(buf.m)), int(buf.length),
			syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
		if err != nil {
			return errors.Join(fmt.Errorf("mmap buffer %d: %w", i, err), d.releaseBuffers())
		}
		d.buffers = append(d.buffers, data)
	}

	for i := range d.buffers {
		if err := d.queue(uint32(i)); err != nil {
			return errors.Join(err, d.releaseBuffers())
		}
	}

	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return errors.Join(fmt.Errorf("stream on: %w", err), d.releaseBuffers())
	}
	d.streaming = true
	return nil
}

func (d *Device) queue(index uint32) error {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("queue buffer %d: %w", index, err)
	}
	return nil
}

// ReadFrame waits up to timeout for a filled buffer, copies it out and
// requeues it. A non-positive timeout waits indefinitely.
func (d *Device) ReadFrame(timeout time.Duration) (Frame, error) {
	if !d.streaming {
		return Frame{}, ErrNotStreaming
	}

	timeoutMs := -1
	if timeout > 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}

	for {
		ready, err := waitReadable(d.fd, timeoutMs)
		if err != nil {
			return Frame{}, fmt.Errorf("wait for frame: %w", err)
		}
		if !ready {
			return Frame{}, ErrTimeout
		}

		buf := v4l2Buffer{typ: bufTypeVideoCapture, memory: memoryMmap}
		if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				continue
			}
			return Frame{}, fmt.Errorf("dequeue buffer: %w", err)
		}
		if int(buf.index) >= len(d.buffers) {
			return Frame{}, fmt.Errorf("dequeue buffer: index %d out of range", buf.index)
		}

		src := d.buffers[buf.index]
		n := int(buf.bytesused)
		if n > len(src) {
			n = len(src)
		}
		frame := Frame{
			Data:      append([]byte(nil), src[:n]...),
			Sequence:  buf.sequence,
			Timestamp: time.Duration(buf.timestamp.Sec)*time.Second + time.Duration(buf.timestamp.Usec)*time.Microsecond,
		}
		if err := d.queue(buf.index); err != nil {
			return frame, err
		}
		return frame, nil
	}
}

// StopStreaming turns the stream off and releases all buffers.
func (d *Device) StopStreaming() error {
	if !d.streaming {
		return nil
	}
	typ := uint32(bufTypeVideoCapture)
	var offErr error
	if err := ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		offErr = fmt.Errorf("stream off: %w", err)
	}
	d.streaming = false
	return errors.Join(offErr, d.releaseBuffers())
}

func (d *Device) releaseBuffers() error {
	var errs []error
	for i, b := range d.buffers {
		if err := syscall.Munmap(b); err != nil {
			errs = append(errs, fmt.Errorf("munmap buffer %d: %w", i, err))
		}
	}
	d.buffers = nil

	req := v4l2Requestbuffers{count: 0, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		errs = append(errs, fmt.Errorf("free buffers: %w", err))
	}
	return errors.Join(errs...)
}
