// internal/snapshot/snapshot_test.go
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tamzrod/ecdebug/internal/ec"
	"github.com/tamzrod/ecdebug/internal/ec/ectest"
)

func TestPanicInfo_Present(t *testing.T) {
	dev := ectest.New()
	blob := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	dev.Handle(ec.CmdGetPanicInfo, ectest.Respond(blob))

	got, err := PanicInfo(ec.NewChannel(dev))
	if err != nil {
		t.Fatalf("PanicInfo err=%v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("unexpected blob % x", got)
	}
}

func TestPanicInfo_Absent(t *testing.T) {
	dev := ectest.New()
	dev.Handle(ec.CmdGetPanicInfo, ectest.Respond(nil))

	got, err := PanicInfo(ec.NewChannel(dev))
	if err != nil {
		t.Fatalf("PanicInfo err=%v", err)
	}
	if got != nil {
		t.Fatalf("expected absent panic info, got % x", got)
	}
}

func TestPanicInfo_Error(t *testing.T) {
	dev := ectest.New()
	dev.Handle(ec.CmdGetPanicInfo, ectest.Broken(errors.New("timeout")))

	if _, err := PanicInfo(ec.NewChannel(dev)); !ec.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

// pdPorts answers USB_PD_CONTROL for the first n ports.
func pdPorts(n int) ectest.Handler {
	return func(version uint32, req, resp []byte) (int, ec.Result, error) {
		port := int(req[0])
		if version != 1 || port >= n {
			return 0, ec.ResultInvalidParam, nil
		}
		resp[0] = 1
		resp[1] = uint8(port)
		resp[2] = 0
		copy(resp[3:], "SNK_READY")
		return ec.USBPDControlResponseV1Size, ec.ResultSuccess, nil
	}
}

func TestPortStatus_StopsAtFirstFailure(t *testing.T) {
	dev := ectest.New()
	dev.Handle(ec.CmdUSBPDControl, pdPorts(2))

	got := PortStatus(ec.NewChannel(dev))
	want := "p0: SNK_READY en:01 role:00 pol:00\n" +
		"p1: SNK_READY en:01 role:01 pol:00\n"
	if got != want {
		t.Fatalf("unexpected port status:\n%q\nwant\n%q", got, want)
	}
	if calls := dev.Calls(ec.CmdUSBPDControl); calls != 3 {
		t.Fatalf("expected 3 queries, got %d", calls)
	}
}

func TestPortStatus_AllPorts(t *testing.T) {
	dev := ectest.New()
	dev.Handle(ec.CmdUSBPDControl, pdPorts(100))

	ports := Ports(ec.NewChannel(dev))
	if len(ports) != ec.USBPDMaxPorts {
		t.Fatalf("expected %d ports, got %d", ec.USBPDMaxPorts, len(ports))
	}
}

func TestPortStatus_NoPD(t *testing.T) {
	if got := PortStatus(ec.NewChannel(ectest.New())); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func uptimeBlob(ms uint32) []byte {
	b := make([]byte, ec.UptimeInfoSize)
	binary.LittleEndian.PutUint32(b[0:], ms)
	binary.LittleEndian.PutUint32(b[4:], 2)
	return b
}

func TestUptime(t *testing.T) {
	dev := ectest.New()
	dev.Handle(ec.CmdGetUptimeInfo, ectest.Respond(uptimeBlob(123456)))
	ch := ec.NewChannel(dev)

	got, err := Uptime(ch)
	if err != nil {
		t.Fatalf("Uptime err=%v", err)
	}
	if got != "123456\n" {
		t.Fatalf("unexpected uptime %q", got)
	}

	info, err := UptimeInfo(ch)
	if err != nil {
		t.Fatalf("UptimeInfo err=%v", err)
	}
	if info.APResetsSinceECBoot != 2 {
		t.Fatalf("unexpected AP reset count %d", info.APResetsSinceECBoot)
	}
}

func TestUptime_ProtocolError(t *testing.T) {
	dev := ectest.New()
	dev.Handle(ec.CmdGetUptimeInfo, ectest.Fail(ec.ResultAccessDenied))

	_, err := Uptime(ec.NewChannel(dev))
	if r, ok := ec.ResultOf(err); !ok || r != ec.ResultAccessDenied {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestUptimeSupported(t *testing.T) {
	dev := ectest.New()
	if UptimeSupported(ec.NewChannel(dev)) {
		t.Fatalf("unknown command must probe as unsupported")
	}

	dev.Handle(ec.CmdGetUptimeInfo, ectest.Fail(ec.ResultBusy))
	if !UptimeSupported(ec.NewChannel(dev)) {
		t.Fatalf("busy must probe as supported")
	}
}
