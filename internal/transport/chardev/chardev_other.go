//go:build !linux

// internal/transport/chardev/chardev_other.go
package chardev

import (
	"errors"

	"github.com/tamzrod/ecdebug/internal/ec"
)

var errUnsupported = errors.New("chardev: the cros_ec device is only available on Linux")

// Transport is a placeholder on platforms without the cros_ec driver.
type Transport struct{}

// Open always fails outside Linux.
func Open(path string, maxResponse int) (*Transport, error) {
	return nil, errUnsupported
}

func (t *Transport) Exchange(*ec.Command) (int, error) { return 0, errUnsupported }
func (t *Transport) MaxRequest() int                    { return ec.DefaultMaxRequest }
func (t *Transport) MaxResponse() int                   { return ec.DefaultMaxResponse }
func (t *Transport) Close() error                       { return nil }
