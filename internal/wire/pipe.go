package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"

	"shared-jello/server/internal/geom"
)

// MessageID identifies a framed protocol message. Each message is a single
// id byte followed by a type-dependent payload.
type MessageID byte

const (
	MsgConnectReply MessageID = iota
	MsgDisconnectRequest
	MsgDisconnectReply
	MsgClientParamUpdate
	MsgClientUpdate
	MsgServerParamUpdate
	MsgServerUpdate
)

func (id MessageID) String() string {
	switch id {
	case MsgConnectReply:
		return "CONNECT_REPLY"
	case MsgDisconnectRequest:
		return "DISCONNECT_REQUEST"
	case MsgDisconnectReply:
		return "DISCONNECT_REPLY"
	case MsgClientParamUpdate:
		return "CLIENT_PARAMUPDATE"
	case MsgClientUpdate:
		return "CLIENT_UPDATE"
	case MsgServerParamUpdate:
		return "SERVER_PARAMUPDATE"
	case MsgServerUpdate:
		return "SERVER_UPDATE"
	default:
		return fmt.Sprintf("MessageID(%d)", byte(id))
	}
}

// PipeError marks an unrecoverable stream failure (short read or write, peer
// reset, connection closed mid-message). It is fatal for the owning pipe
// only.
type PipeError struct {
	Op  string
	Err error
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("pipe error during %s: %v", e.Op, e.Err)
}

func (e *PipeError) Unwrap() error {
	return e.Err
}

// Pipe wraps one TCP connection with framed, typed message IO. The wire byte
// order is little-endian unless declared otherwise with SetByteOrder. Writes
// must be serialized by the caller through WriteLocked; reads are
// single-consumer and need no lock.
type Pipe struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	order binary.ByteOrder

	writeMu      sync.Mutex
	bytesWritten atomic.Uint64

	// Separate scratch buffers: reads run on the owning reader goroutine,
	// writes under writeMu, and the two sides overlap freely.
	rbuf [8]byte
	wbuf [8]byte
}

// NewPipe wraps conn with buffered little-endian framed IO.
func NewPipe(conn net.Conn) *Pipe {
	return &Pipe{
		conn:  conn,
		r:     bufio.NewReader(conn),
		w:     bufio.NewWriter(conn),
		order: binary.LittleEndian,
	}
}

// SetByteOrder declares the stream's byte order. Values are swapped on
// encode/decode when the declared order differs from the host's layout;
// encoding/binary handles the swap transparently.
func (p *Pipe) SetByteOrder(order binary.ByteOrder) {
	p.order = order
}

// RemoteAddr reports the peer address of the underlying connection.
func (p *Pipe) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

// WriteLocked runs fn while holding the pipe's write mutex and flushes the
// stream afterwards. fn must emit whole messages only.
func (p *Pipe) WriteLocked(fn func() error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return p.Flush()
}

// Flush drains the write buffer to the socket.
func (p *Pipe) Flush() error {
	if err := p.w.Flush(); err != nil {
		return &PipeError{Op: "flush", Err: err}
	}
	return nil
}

// CloseWrite half-closes the write side, signalling a clean end of stream
// after a DISCONNECT_REPLY.
func (p *Pipe) CloseWrite() error {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := p.conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Close tears down the underlying connection.
func (p *Pipe) Close() error {
	return p.conn.Close()
}

// BytesWritten reports the total payload bytes emitted on this pipe.
func (p *Pipe) BytesWritten() uint64 {
	return p.bytesWritten.Load()
}

func (p *Pipe) readFull(buf []byte, op string) error {
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return &PipeError{Op: op, Err: err}
	}
	return nil
}

func (p *Pipe) write(buf []byte, op string) error {
	n, err := p.w.Write(buf)
	p.bytesWritten.Add(uint64(n))
	if err != nil {
		return &PipeError{Op: op, Err: err}
	}
	return nil
}

// ReadMessageID reads the next frame's message id.
func (p *Pipe) ReadMessageID() (MessageID, error) {
	b := p.rbuf[:1]
	if err := p.readFull(b, "read message id"); err != nil {
		return 0, err
	}
	return MessageID(b[0]), nil
}

// WriteMessageID begins a new frame.
func (p *Pipe) WriteMessageID(id MessageID) error {
	p.wbuf[0] = byte(id)
	return p.write(p.wbuf[:1], "write message id")
}

// ReadInt32 reads a 32-bit two's-complement integer.
func (p *Pipe) ReadInt32() (int32, error) {
	b := p.rbuf[:4]
	if err := p.readFull(b, "read int32"); err != nil {
		return 0, err
	}
	return int32(p.order.Uint32(b)), nil
}

// WriteInt32 writes a 32-bit two's-complement integer.
func (p *Pipe) WriteInt32(v int32) error {
	b := p.wbuf[:4]
	p.order.PutUint32(b, uint32(v))
	return p.write(b, "write int32")
}

// ReadUint32 reads a 32-bit unsigned integer.
func (p *Pipe) ReadUint32() (uint32, error) {
	b := p.rbuf[:4]
	if err := p.readFull(b, "read uint32"); err != nil {
		return 0, err
	}
	return p.order.Uint32(b), nil
}

// WriteUint32 writes a 32-bit unsigned integer.
func (p *Pipe) WriteUint32(v uint32) error {
	b := p.wbuf[:4]
	p.order.PutUint32(b, v)
	return p.write(b, "write uint32")
}

// ReadBool reads a one-byte boolean; zero is false.
func (p *Pipe) ReadBool() (bool, error) {
	b := p.rbuf[:1]
	if err := p.readFull(b, "read bool"); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// WriteBool writes a one-byte boolean.
func (p *Pipe) WriteBool(v bool) error {
	if v {
		p.wbuf[0] = 1
	} else {
		p.wbuf[0] = 0
	}
	return p.write(p.wbuf[:1], "write bool")
}

// ReadScalar reads an IEEE-754 binary32 scalar.
func (p *Pipe) ReadScalar() (geom.Scalar, error) {
	b := p.rbuf[:4]
	if err := p.readFull(b, "read scalar"); err != nil {
		return 0, err
	}
	return math.Float32frombits(p.order.Uint32(b)), nil
}

// WriteScalar writes an IEEE-754 binary32 scalar.
func (p *Pipe) WriteScalar(v geom.Scalar) error {
	b := p.wbuf[:4]
	p.order.PutUint32(b, math.Float32bits(v))
	return p.write(b, "write scalar")
}

// ReadPoint reads three scalars as a point.
func (p *Pipe) ReadPoint() (geom.Point, error) {
	var pt geom.Point
	for i := 0; i < 3; i++ {
		v, err := p.ReadScalar()
		if err != nil {
			return pt, err
		}
		pt[i] = v
	}
	return pt, nil
}

// WritePoint writes three scalars.
func (p *Pipe) WritePoint(pt geom.Point) error {
	for i := 0; i < 3; i++ {
		if err := p.WriteScalar(pt[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadVector reads three scalars as a vector.
func (p *Pipe) ReadVector() (geom.Vector, error) {
	return p.ReadPoint()
}

// WriteVector writes three scalars.
func (p *Pipe) WriteVector(v geom.Vector) error {
	return p.WritePoint(v)
}

// ReadRay reads an origin point and a direction vector.
func (p *Pipe) ReadRay() (geom.Ray, error) {
	var ray geom.Ray
	var err error
	if ray.Origin, err = p.ReadPoint(); err != nil {
		return ray, err
	}
	if ray.Direction, err = p.ReadVector(); err != nil {
		return ray, err
	}
	return ray, nil
}

// WriteRay writes an origin point and a direction vector.
func (p *Pipe) WriteRay(ray geom.Ray) error {
	if err := p.WritePoint(ray.Origin); err != nil {
		return err
	}
	return p.WriteVector(ray.Direction)
}

// ReadONTransform reads a translation vector and a unit quaternion encoded
// as (x, y, z, w).
func (p *Pipe) ReadONTransform() (geom.ONTransform, error) {
	var t geom.ONTransform
	var err error
	if t.Translation, err = p.ReadVector(); err != nil {
		return t, err
	}
	for i := 0; i < 3; i++ {
		if t.Rotation.V[i], err = p.ReadScalar(); err != nil {
			return t, err
		}
	}
	if t.Rotation.W, err = p.ReadScalar(); err != nil {
		return t, err
	}
	return t, nil
}

// WriteONTransform writes a translation vector and a unit quaternion encoded
// as (x, y, z, w).
func (p *Pipe) WriteONTransform(t geom.ONTransform) error {
	if err := p.WriteVector(t.Translation); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if err := p.WriteScalar(t.Rotation.V[i]); err != nil {
			return err
		}
	}
	return p.WriteScalar(t.Rotation.W)
}
