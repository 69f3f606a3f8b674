// client.go
//
// Minimal digits-protocol client used by the load generator and the
// integration tests.  One reusable ten-byte scratch formats every outbound
// line, and a 16 KiB buffered writer coalesces lines into full TCP
// segments so the sender saturates the link instead of the syscall layer.

package loadtest

import (
	"bufio"
	"net"

	"main/constants"
	"main/utils"
)

// Client is one TCP connection speaking the digits wire protocol.
type Client struct {
	conn    *net.TCPConn
	w       *bufio.Writer
	scratch [constants.LineLength]byte
}

// Dial connects to a digits server and applies the client-side socket
// contract: no Nagle, 16 KiB buffers.
func Dial(addr string) (*Client, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	conn := raw.(*net.TCPConn)
	_ = conn.SetNoDelay(true)
	_ = conn.SetReadBuffer(constants.SocketBufferSize)
	_ = conn.SetWriteBuffer(constants.SocketBufferSize)
	c := &Client{
		conn: conn,
		w:    bufio.NewWriterSize(conn, constants.SocketBufferSize),
	}
	c.scratch[constants.DigitCount] = '\n'
	return c, nil
}

// SendValue formats v as nine zero-padded digits plus LF and queues the
// line. Allocation-free; the scratch buffer is reused for every call.
func (c *Client) SendValue(v uint32) error {
	utils.PutDigits(v, (*[constants.DigitCount]byte)(c.scratch[:constants.DigitCount]))
	_, err := c.w.Write(c.scratch[:])
	return err
}

// SendRaw queues arbitrary bytes. Test hook for malformed-frame and
// split-segment scenarios.
func (c *Client) SendRaw(b []byte) error {
	_, err := c.w.Write(b)
	return err
}

// Flush pushes all queued lines onto the wire.
func (c *Client) Flush() error {
	return c.w.Flush()
}

// Terminate sends the in-band shutdown command and flushes immediately.
func (c *Client) Terminate() error {
	if _, err := c.w.Write(constants.TerminateLine[:]); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close flushes any queued lines and closes the connection.
func (c *Client) Close() error {
	_ = c.w.Flush()
	return c.conn.Close()
}
