// internal/transport/packet/packet_test.go
package packet

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/ecdebug/internal/ec"
)

func TestEncodeRequest_ChecksumAndLayout(t *testing.T) {
	pkt, err := EncodeRequest(0x0098, 1, []byte{ec.ConsoleReadRecent})
	if err != nil {
		t.Fatalf("EncodeRequest err=%v", err)
	}
	if len(pkt) != HeaderSize+1 {
		t.Fatalf("unexpected length %d", len(pkt))
	}
	if pkt[0] != StructVersion || binary.LittleEndian.Uint16(pkt[2:]) != 0x0098 || pkt[4] != 1 {
		t.Fatalf("unexpected header % x", pkt[:HeaderSize])
	}
	if err := Verify(pkt); err != nil {
		t.Fatalf("frame does not verify: %v", err)
	}

	pkt[HeaderSize] ^= 0xFF
	if err := Verify(pkt); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestParseResponseHeader_BadVersion(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	hdr[0] = 2
	if _, err := ParseResponseHeader(hdr); !errors.Is(err, ErrStructVersion) {
		t.Fatalf("expected version error, got %v", err)
	}
}

// serve answers requests on conn with fn until conn is closed.
func serve(t *testing.T, conn io.ReadWriteCloser, fn func(RequestHeader, []byte) []byte) {
	t.Helper()
	go func() {
		defer conn.Close()
		for {
			hdr := make([]byte, HeaderSize)
			if _, err := io.ReadFull(conn, hdr); err != nil {
				return
			}
			h, err := ParseRequestHeader(hdr)
			if err != nil {
				return
			}
			data := make([]byte, h.DataLen)
			if _, err := io.ReadFull(conn, data); err != nil {
				return
			}
			if Verify(hdr, data) != nil {
				return
			}
			if _, err := conn.Write(fn(h, data)); err != nil {
				return
			}
		}
	}()
}

func response(result uint16, data []byte) []byte {
	pkt, _ := EncodeResponse(result, data)
	return pkt
}

func TestExchange_OverPipe(t *testing.T) {
	client, server := net.Pipe()
	serve(t, server, func(h RequestHeader, data []byte) []byte {
		if h.Command == ec.CmdGetUptimeInfo {
			return response(0, []byte{1, 2, 3, 4})
		}
		return response(uint16(ec.ResultInvalidCommand), nil)
	})

	tr, err := New(client, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	defer tr.Close()

	cmd := ec.NewCommand(ec.CmdGetUptimeInfo, 0, 0, 8)
	n, err := tr.Exchange(cmd)
	if err != nil {
		t.Fatalf("Exchange err=%v", err)
	}
	if n != 4 || cmd.Result != ec.ResultSuccess || cmd.Data[3] != 4 {
		t.Fatalf("unexpected response n=%d result=%v data=% x", n, cmd.Result, cmd.Data[:n])
	}

	cmd = ec.NewCommand(0x0042, 0, 0, 8)
	if _, err := tr.Exchange(cmd); err != nil {
		t.Fatalf("Exchange err=%v", err)
	}
	if cmd.Result != ec.ResultInvalidCommand {
		t.Fatalf("expected EC status passthrough, got %v", cmd.Result)
	}
}

func TestExchange_ResponseTooBigKeepsStreamAligned(t *testing.T) {
	client, server := net.Pipe()
	serve(t, server, func(h RequestHeader, _ []byte) []byte {
		if h.Command == 1 {
			return response(0, make([]byte, 16))
		}
		return response(0, []byte{0xAA})
	})

	tr, _ := New(client)
	defer tr.Close()

	if _, err := tr.Exchange(ec.NewCommand(1, 0, 0, 4)); !errors.Is(err, ErrResponseTooBig) {
		t.Fatalf("expected ErrResponseTooBig, got %v", err)
	}

	cmd := ec.NewCommand(2, 0, 0, 4)
	n, err := tr.Exchange(cmd)
	if err != nil || n != 1 || cmd.Data[0] != 0xAA {
		t.Fatalf("stream out of sync: n=%d err=%v", n, err)
	}
}

func TestExchange_CorruptChecksum(t *testing.T) {
	client, server := net.Pipe()
	serve(t, server, func(RequestHeader, []byte) []byte {
		pkt := response(0, []byte{1, 2})
		pkt[1]++
		return pkt
	})

	tr, _ := New(client)
	defer tr.Close()

	if _, err := tr.Exchange(ec.NewCommand(1, 0, 0, 4)); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestExchange_Timeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	go io.Copy(io.Discard, server) // swallow requests, never answer

	tr, _ := New(client, WithTimeout(20*time.Millisecond))
	defer tr.Close()

	if _, err := tr.Exchange(ec.NewCommand(1, 0, 0, 4)); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNegotiate(t *testing.T) {
	client, server := net.Pipe()
	serve(t, server, func(h RequestHeader, _ []byte) []byte {
		info := make([]byte, ec.ProtocolInfoSize)
		binary.LittleEndian.PutUint16(info[4:], 128)
		binary.LittleEndian.PutUint16(info[6:], 512)
		return response(0, info)
	})

	tr, _ := New(client)
	defer tr.Close()

	if err := tr.Negotiate(256); err != nil {
		t.Fatalf("Negotiate err=%v", err)
	}
	if tr.MaxRequest() != 120 || tr.MaxResponse() != 256 {
		t.Fatalf("unexpected limits %d/%d", tr.MaxRequest(), tr.MaxResponse())
	}
}

func TestWebSocket_Exchange(t *testing.T) {
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "lab" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h, err := ParseRequestHeader(msg)
			if err != nil {
				return
			}
			var out [2]byte
			binary.LittleEndian.PutUint16(out[:], h.Command)
			if err := conn.WriteMessage(websocket.BinaryMessage, response(0, out[:])); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	if _, err := DialWebSocket(t.Context(), wsURL, "lab", "wrong", false); err == nil {
		t.Fatalf("expected auth failure")
	}

	conn, err := DialWebSocket(t.Context(), wsURL, "lab", "secret", false)
	if err != nil {
		t.Fatalf("DialWebSocket err=%v", err)
	}
	tr, _ := New(conn, WithTimeout(time.Second))
	defer tr.Close()

	cmd := ec.NewCommand(0x0121, 0, 0, 4)
	n, err := tr.Exchange(cmd)
	if err != nil {
		t.Fatalf("Exchange err=%v", err)
	}
	if n != 2 || binary.LittleEndian.Uint16(cmd.Data) != 0x0121 {
		t.Fatalf("unexpected echo % x", cmd.Data[:n])
	}
}

func TestDialWebSocket_RejectsScheme(t *testing.T) {
	if _, err := DialWebSocket(t.Context(), "http://example.invalid", "", "", false); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestGetPassword_FromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "hunter2")
	pw, err := GetPassword()
	if err != nil || pw != "hunter2" {
		t.Fatalf("unexpected password %q err=%v", pw, err)
	}
}
