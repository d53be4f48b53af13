//go:build linux

// internal/transport/chardev/chardev_linux.go
package chardev

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tamzrod/ecdebug/internal/ec"
)

// CROS_EC_DEV_IOCXCMD_V2 = _IOWR(0xEC, 0, struct cros_ec_command)
const ioctlXCmdV2 = 0xc014ec00

// Transport issues one ioctl per command.
type Transport struct {
	mu      sync.Mutex
	f       *os.File
	maxReq  int
	maxResp int
}

// Open opens the node and negotiates payload limits. maxResponse > 0
// caps the negotiated response size.
func Open(path string, maxResponse int) (*Transport, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("chardev: %w", err)
	}

	t := &Transport{
		f:       f,
		maxReq:  ec.DefaultMaxRequest,
		maxResp: ec.DefaultMaxResponse,
	}
	if req, resp, err := ec.NegotiateLimits(t); err == nil {
		t.maxReq, t.maxResp = req, resp
	}
	if maxResponse > 0 && maxResponse < t.maxResp {
		t.maxResp = maxResponse
	}
	return t, nil
}

func (t *Transport) Exchange(cmd *ec.Command) (int, error) {
	buf := encodeCommand(cmd)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.f == nil {
		return 0, os.ErrClosed
	}

	r, _, errno := unix.Syscall(unix.SYS_IOCTL, t.f.Fd(), uintptr(ioctlXCmdV2), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		// Some kernels report an EC status through EPROTO with the
		// result field filled in.
		if errors.Is(errno, unix.EPROTO) {
			return decodeResult(buf, 0, cmd), nil
		}
		return 0, fmt.Errorf("chardev: ioctl: %w", errno)
	}
	return decodeResult(buf, int(r), cmd), nil
}

func (t *Transport) MaxRequest() int  { return t.maxReq }
func (t *Transport) MaxResponse() int { return t.maxResp }

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}
