// Package p2p implements the gossip/RPC layer: a length-prefixed binary
// envelope over plain TCP, connect-per-request request/response pairs, a
// peer table, and the peer-selection and broadcast-fan-out algorithms that
// keep it populated.
package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// CommandBytes is the fixed width of a command name in the envelope.
const CommandBytes = 16

// MaxPayloadBytes bounds a single envelope's payload length.
const MaxPayloadBytes = 8 * 1024 * 1024

// Envelope is one wire message: a command name plus its payload.
type Envelope struct {
	Command string
	Payload []byte
}

func encodeCommand(cmd string) ([CommandBytes]byte, error) {
	var out [CommandBytes]byte
	if len(cmd) == 0 || len(cmd) > CommandBytes {
		return out, fmt.Errorf("p2p: bad command length %q", cmd)
	}
	copy(out[:], cmd)
	return out, nil
}

func decodeCommand(b [CommandBytes]byte) string {
	n := CommandBytes
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
	}
	return string(b[:n])
}

func checksum(payload []byte) [4]byte {
	h := crypto.Sha256(payload)
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// WriteEnvelope writes one message: 16-byte command, 4-byte little-endian
// payload length, 4-byte checksum, then the payload.
func WriteEnvelope(w io.Writer, command string, payload []byte) error {
	cmd, err := encodeCommand(command)
	if err != nil {
		return err
	}
	if len(payload) > MaxPayloadBytes {
		return fmt.Errorf("p2p: payload too large")
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	sum := checksum(payload)

	if _, err := w.Write(cmd[:]); err != nil {
		return err
	}
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(sum[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err = w.Write(payload)
	return err
}

// ReadEnvelope reads exactly one message from r.
func ReadEnvelope(r io.Reader) (*Envelope, error) {
	var cmdBytes [CommandBytes]byte
	if _, err := io.ReadFull(r, cmdBytes[:]); err != nil {
		return nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	payloadLen := binary.LittleEndian.Uint32(lenBuf[:])
	if payloadLen > MaxPayloadBytes {
		return nil, fmt.Errorf("p2p: declared payload length exceeds maximum")
	}
	var wantSum [4]byte
	if _, err := io.ReadFull(r, wantSum[:]); err != nil {
		return nil, err
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	if checksum(payload) != wantSum {
		return nil, fmt.Errorf("p2p: checksum mismatch")
	}

	return &Envelope{Command: decodeCommand(cmdBytes), Payload: payload}, nil
}

// dialNoDelay opens a TCP connection with TCP_NODELAY enabled, as the wire
// protocol expects: every request is its own short-lived connection, so
// Nagle's algorithm would only add latency.
func dialNoDelay(addr string) (net.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}
