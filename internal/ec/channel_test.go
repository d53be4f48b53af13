// internal/ec/channel_test.go
package ec

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTransport answers every exchange through fn.
type fakeTransport struct {
	maxReq  int
	maxResp int
	fn      func(cmd *Command) (int, error)

	mu   sync.Mutex
	seen []Command
}

func (f *fakeTransport) Exchange(cmd *Command) (int, error) {
	f.mu.Lock()
	f.seen = append(f.seen, *cmd)
	f.mu.Unlock()
	return f.fn(cmd)
}

func (f *fakeTransport) MaxRequest() int  { return f.maxReq }
func (f *fakeTransport) MaxResponse() int { return f.maxResp }
func (f *fakeTransport) Close() error     { return nil }

func respond(data []byte) func(*Command) (int, error) {
	return func(cmd *Command) (int, error) {
		return copy(cmd.Data[:cmd.InSize], data), nil
	}
}

func TestTransfer_Success(t *testing.T) {
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: respond([]byte{1, 2, 3})}
	ch := NewChannel(tr)

	cmd := NewCommand(0x42, 0, 0, 8)
	n, err := ch.Transfer(cmd)
	if err != nil {
		t.Fatalf("Transfer err=%v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes, got %d", n)
	}
	if cmd.Data[2] != 3 {
		t.Fatalf("unexpected payload %v", cmd.Data[:n])
	}
}

func TestTransfer_ProtocolError(t *testing.T) {
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: func(cmd *Command) (int, error) {
		cmd.Result = ResultInvalidCommand
		return 0, nil
	}}
	ch := NewChannel(tr)

	_, err := ch.Transfer(NewCommand(0x42, 0, 0, 4))
	if !IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if !Unsupported(err) {
		t.Fatalf("expected invalid command to be unsupported")
	}
	if IsTransportError(err) {
		t.Fatalf("protocol error must not be a transport error")
	}
}

func TestTransfer_TransportError(t *testing.T) {
	bus := errors.New("bus fault")
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: func(*Command) (int, error) {
		return 0, bus
	}}
	ch := NewChannel(tr)

	_, err := ch.Transfer(NewCommand(0x42, 0, 0, 4))
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, bus) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if Unsupported(err) {
		t.Fatalf("transport error must not read as unsupported")
	}
}

func TestTransfer_ClampsInSize(t *testing.T) {
	tr := &fakeTransport{maxReq: 16, maxResp: 8, fn: respond(nil)}
	ch := NewChannel(tr)

	cmd := NewCommand(0x42, 0, 0, 64)
	if _, err := ch.Transfer(cmd); err != nil {
		t.Fatalf("Transfer err=%v", err)
	}
	if got := tr.seen[0].InSize; got != 8 {
		t.Fatalf("expected insize clamped to 8, got %d", got)
	}
}

func TestTransfer_RejectsOversizedRequest(t *testing.T) {
	tr := &fakeTransport{maxReq: 4, maxResp: 16, fn: respond(nil)}
	ch := NewChannel(tr)

	_, err := ch.Transfer(NewCommand(0x42, 0, 5, 0))
	if !errors.Is(err, ErrMessageSize) {
		t.Fatalf("expected ErrMessageSize, got %v", err)
	}
	if len(tr.seen) != 0 {
		t.Fatalf("oversized request reached the transport")
	}
}

func TestTransfer_ResponseLongerThanInSize(t *testing.T) {
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: func(*Command) (int, error) {
		return 12, nil
	}}
	ch := NewChannel(tr)

	_, err := ch.Transfer(NewCommand(0x42, 0, 0, 4))
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestTransfer_CommandOffset(t *testing.T) {
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: respond(nil)}
	ch := NewChannel(tr, WithCommandOffset(0x4000))

	cmd := NewCommand(0x0098, 1, 1, 4)
	if _, err := ch.Transfer(cmd); err != nil {
		t.Fatalf("Transfer err=%v", err)
	}
	if got := tr.seen[0].Command; got != 0x4098 {
		t.Fatalf("expected 0x4098 on the wire, got 0x%x", got)
	}
	if cmd.Command != 0x0098 {
		t.Fatalf("caller record not restored: 0x%x", cmd.Command)
	}
}

func TestDirect_SkipsOffset(t *testing.T) {
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: respond(nil)}
	ch := NewChannel(tr, WithCommandOffset(0x4000))
	direct := ch.Direct()

	if direct.CommandOffset() != 0 {
		t.Fatalf("direct view kept offset 0x%x", direct.CommandOffset())
	}
	if _, err := direct.Transfer(NewCommand(0x0022, 1, 4, 4)); err != nil {
		t.Fatalf("Transfer err=%v", err)
	}
	if _, err := ch.Transfer(NewCommand(0x0098, 1, 1, 4)); err != nil {
		t.Fatalf("Transfer err=%v", err)
	}
	if tr.seen[0].Command != 0x0022 || tr.seen[1].Command != 0x4098 {
		t.Fatalf("unexpected wire opcodes 0x%x 0x%x", tr.seen[0].Command, tr.seen[1].Command)
	}
	if direct.mu != ch.mu {
		t.Fatalf("views must share one lock")
	}
}

func TestTransfer_Serialized(t *testing.T) {
	var inFlight, peak int32
	tr := &fakeTransport{maxReq: 16, maxResp: 16, fn: func(*Command) (int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 0, nil
	}}
	ch := NewChannel(tr)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ch.Transfer(NewCommand(0x42, 0, 0, 0))
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("expected one exchange in flight, saw %d", peak)
	}
}

// ---- probe ----

func versionsTransport(mask uint32, result Result, err error) *fakeTransport {
	return &fakeTransport{maxReq: 16, maxResp: 16, fn: func(cmd *Command) (int, error) {
		if err != nil {
			return 0, err
		}
		cmd.Result = result
		if result != ResultSuccess {
			return 0, nil
		}
		binary.LittleEndian.PutUint32(cmd.Data, mask)
		return 4, nil
	}}
}

func TestSupports(t *testing.T) {
	cases := []struct {
		name   string
		tr     *fakeTransport
		expect bool
	}{
		{"version present", versionsTransport(0b11, ResultSuccess, nil), true},
		{"version absent", versionsTransport(0b01, ResultSuccess, nil), false},
		{"invalid command", versionsTransport(0, ResultInvalidCommand, nil), false},
		{"other ec error", versionsTransport(0, ResultBusy, nil), true},
		{"transport error", versionsTransport(0, 0, errors.New("timeout")), true},
	}

	for _, tc := range cases {
		ch := NewChannel(tc.tr)
		if got := ch.Supports(CmdConsoleRead, 1); got != tc.expect {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expect, got)
		}
	}
}

func TestSupports_SendsOpcode(t *testing.T) {
	tr := versionsTransport(0b10, ResultSuccess, nil)
	ch := NewChannel(tr)
	ch.Supports(CmdConsoleRead, 1)

	got := tr.seen[0]
	if got.Command != uint32(CmdGetCmdVersions) || got.Version != 1 {
		t.Fatalf("unexpected probe command 0x%x v%d", got.Command, got.Version)
	}
}

func TestProbe(t *testing.T) {
	ch := NewChannel(versionsTransport(0, ResultInvalidCommand, nil))
	if ch.Probe(NewCommand(CmdGetUptimeInfo, 0, 0, UptimeInfoSize)) {
		t.Fatalf("expected unsupported")
	}

	ch = NewChannel(versionsTransport(0, ResultAccessDenied, nil))
	if !ch.Probe(NewCommand(CmdGetUptimeInfo, 0, 0, UptimeInfoSize)) {
		t.Fatalf("expected inconclusive failure to count as supported")
	}
}

func TestNegotiateLimits(t *testing.T) {
	info := make([]byte, ProtocolInfoSize)
	binary.LittleEndian.PutUint32(info[0:], 1<<3)
	binary.LittleEndian.PutUint16(info[4:], 544)
	binary.LittleEndian.PutUint16(info[6:], 256)

	tr := &fakeTransport{maxReq: 248, maxResp: 248, fn: respond(info)}
	req, resp, err := NegotiateLimits(tr)
	if err != nil {
		t.Fatalf("NegotiateLimits err=%v", err)
	}
	if req != 536 || resp != 248 {
		t.Fatalf("unexpected limits %d/%d", req, resp)
	}
}
