// internal/fsys/mount.go

// Package fsys exposes attached devices as a FUSE filesystem: one
// directory per device with one file per endpoint.
//
//	<mountpoint>/<device>/console_log          stream, blocking reads
//	<mountpoint>/<device>/panicinfo            raw panic record
//	<mountpoint>/<device>/pdinfo               USB-PD port lines
//	<mountpoint>/<device>/uptime               ms since EC boot
//	<mountpoint>/<device>/last_resume_result   read-only
//	<mountpoint>/<device>/suspend_timeout_ms   read-write
package fsys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tamzrod/ecdebug/internal/device"
)

// Options configures the mount.
type Options struct {
	Mountpoint string
	Devices    []*device.Device

	// AllowOther requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	Logger *slog.Logger
}

// Mount mounts the filesystem. The caller must Unmount the returned
// server. The mountpoint is created if missing.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if len(options.Devices) == 0 {
		return nil, fmt.Errorf("at least one device is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// Values change on every read; keep the kernel from caching attrs.
	entryTimeout := time.Second
	attrTimeout := time.Duration(0)

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "ecdebug",
			Name:       "ecdebug",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("ecdebug filesystem mounted",
		"mountpoint", options.Mountpoint,
		"devices", len(options.Devices),
	)
	return server, nil
}

// rootNode has one directory per device.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	for _, d := range r.options.Devices {
		dir := r.NewPersistentInode(ctx, &deviceNode{dev: d, logger: r.options.Logger},
			gofuse.StableAttr{Mode: syscall.S_IFDIR})
		r.AddChild(d.ID(), dir, true)
	}
}

// deviceNode holds the endpoint files of one device. The set is fixed
// at mount time since features never change after attach.
type deviceNode struct {
	gofuse.Inode
	dev    *device.Device
	logger *slog.Logger
}

var _ gofuse.InodeEmbedder = (*deviceNode)(nil)
var _ gofuse.NodeOnAdder = (*deviceNode)(nil)

func (n *deviceNode) OnAdd(ctx context.Context) {
	for _, e := range n.dev.Endpoints() {
		var node gofuse.InodeEmbedder
		switch e {
		case device.EndpointConsoleLog:
			p, _ := n.dev.Console()
			node = &consoleNode{pipeline: p}
		case device.EndpointSuspendTimeout:
			node = &suspendTimeoutNode{dev: n.dev}
		default:
			node = &valueNode{dev: n.dev, endpoint: e, logger: n.logger}
		}
		child := n.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
		n.AddChild(string(e), child, true)
	}
}
