// internal/ec/ectest/console.go
package ectest

import (
	"sync"

	"github.com/tamzrod/ecdebug/internal/ec"
)

// Console emulates the EC console log: output written since the last
// snapshot becomes readable through CONSOLE_READ/recent after the next
// snapshot.
type Console struct {
	mu        sync.Mutex
	log       []byte
	captured  []byte
	snapshots int
}

// AttachConsole installs console handlers on d and advertises
// CONSOLE_READ v1 through GET_CMD_VERSIONS.
func (d *Device) AttachConsole() *Console {
	c := &Console{}
	d.Handle(ec.CmdConsoleSnapshot, c.snapshot)
	d.Handle(ec.CmdConsoleRead, c.read)
	d.Handle(ec.CmdGetCmdVersions, Versions(map[uint16]uint32{
		ec.CmdConsoleRead: ec.VersionMask(0) | ec.VersionMask(1),
	}))
	return c
}

// Write appends EC console output.
func (c *Console) Write(s string) {
	c.mu.Lock()
	c.log = append(c.log, s...)
	c.mu.Unlock()
}

// Snapshots returns how many snapshots were taken.
func (c *Console) Snapshots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots
}

func (c *Console) snapshot(uint32, []byte, []byte) (int, ec.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots++
	c.captured = append(c.captured, c.log...)
	c.log = nil
	return 0, ec.ResultSuccess, nil
}

func (c *Console) read(version uint32, req, resp []byte) (int, ec.Result, error) {
	if version != 1 || len(req) < 1 || req[0] != ec.ConsoleReadRecent || len(resp) < 1 {
		return 0, ec.ResultInvalidParam, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(len(c.captured), len(resp)-1)
	copy(resp, c.captured[:n])
	resp[n] = 0
	c.captured = c.captured[n:]
	return n + 1, ec.ResultSuccess, nil
}
