// internal/fsys/nodes.go
package fsys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tamzrod/ecdebug/internal/console"
	"github.com/tamzrod/ecdebug/internal/device"
)

const writeFlags = syscall.O_WRONLY | syscall.O_RDWR

// ------------------------------------------------------------
// console_log
// ------------------------------------------------------------

// consoleNode streams the console ring. Reads consume data; there is
// no offset and no size.
type consoleNode struct {
	gofuse.Inode
	pipeline *console.Pipeline
}

var _ gofuse.NodeGetattrer = (*consoleNode)(nil)
var _ gofuse.NodeOpener = (*consoleNode)(nil)

func (c *consoleNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	return 0
}

func (c *consoleNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&writeFlags != 0 {
		return nil, 0, syscall.EACCES
	}
	h := &consoleHandle{
		pipeline: c.pipeline,
		nonblock: flags&syscall.O_NONBLOCK != 0,
	}
	return h, fuse.FOPEN_DIRECT_IO | fuse.FOPEN_NONSEEKABLE, 0
}

type consoleHandle struct {
	pipeline *console.Pipeline
	nonblock bool
}

var _ gofuse.FileReader = (*consoleHandle)(nil)

func (h *consoleHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.pipeline.Read(ctx, dest, h.nonblock)
	if errors.Is(err, console.ErrClosed) {
		return fuse.ReadResultData(nil), 0
	}
	if err != nil {
		return nil, consoleErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// consoleErrno maps pipeline read errors onto what a reader of a
// character stream expects.
func consoleErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, console.ErrWouldBlock):
		return syscall.EAGAIN
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	default:
		return syscall.EIO
	}
}

// ------------------------------------------------------------
// Read-only values
// ------------------------------------------------------------

// valueNode renders its content once per open, so a single open sees
// a consistent value across short reads.
type valueNode struct {
	gofuse.Inode
	dev      *device.Device
	endpoint device.Endpoint
	logger   *slog.Logger
}

var _ gofuse.NodeGetattrer = (*valueNode)(nil)
var _ gofuse.NodeOpener = (*valueNode)(nil)

func (v *valueNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	return 0
}

func (v *valueNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&writeFlags != 0 {
		return nil, 0, syscall.EACCES
	}
	content, err := render(v.dev, v.endpoint)
	if err != nil {
		v.logger.Warn("endpoint read failed",
			"device", v.dev.ID(),
			"endpoint", v.endpoint,
			"error", err,
		)
		return nil, 0, syscall.EIO
	}
	return &bytesHandle{content: content}, fuse.FOPEN_DIRECT_IO, 0
}

// render produces the file content of a read-only endpoint.
func render(d *device.Device, e device.Endpoint) ([]byte, error) {
	switch e {
	case device.EndpointPanicInfo:
		info, ok := d.PanicInfo()
		if !ok {
			return nil, device.ErrUnsupported
		}
		return info, nil
	case device.EndpointPDInfo:
		return []byte(d.PortStatus()), nil
	case device.EndpointUptime:
		s, err := d.Uptime()
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case device.EndpointLastResumeResult:
		return fmt.Appendf(nil, "0x%08x\n", d.LastResumeResult()), nil
	case device.EndpointSuspendTimeout:
		return suspendTimeoutText(d), nil
	default:
		return nil, fmt.Errorf("fsys: endpoint %q has no static content", e)
	}
}

type bytesHandle struct {
	content []byte
}

var _ gofuse.FileReader = (*bytesHandle)(nil)

func (h *bytesHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(h.content)) {
		return fuse.ReadResultData(nil), 0
	}
	n := copy(dest, h.content[off:])
	return fuse.ReadResultData(dest[:n]), 0
}

// ------------------------------------------------------------
// suspend_timeout_ms
// ------------------------------------------------------------

type suspendTimeoutNode struct {
	gofuse.Inode
	dev *device.Device
}

var _ gofuse.NodeGetattrer = (*suspendTimeoutNode)(nil)
var _ gofuse.NodeSetattrer = (*suspendTimeoutNode)(nil)
var _ gofuse.NodeOpener = (*suspendTimeoutNode)(nil)

func (s *suspendTimeoutNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o644
	return 0
}

// Setattr accepts the truncation that accompanies O_TRUNC opens.
func (s *suspendTimeoutNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o644
	return 0
}

func (s *suspendTimeoutNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return &suspendTimeoutHandle{
		bytesHandle: bytesHandle{content: suspendTimeoutText(s.dev)},
		dev:         s.dev,
	}, fuse.FOPEN_DIRECT_IO, 0
}

type suspendTimeoutHandle struct {
	bytesHandle
	dev *device.Device
}

var _ gofuse.FileWriter = (*suspendTimeoutHandle)(nil)

func (h *suspendTimeoutHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	v, err := parseSuspendTimeout(data)
	if err != nil {
		return 0, syscall.EINVAL
	}
	h.dev.SetSuspendTimeoutMs(v)
	return uint32(len(data)), 0
}

func suspendTimeoutText(d *device.Device) []byte {
	return fmt.Appendf(nil, "%d\n", d.SuspendTimeoutMs())
}

// parseSuspendTimeout accepts decimal, 0x hex or 0 octal, with an
// optional trailing newline.
func parseSuspendTimeout(data []byte) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
