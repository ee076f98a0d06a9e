package wire

import (
	"fmt"

	"shared-jello/server/internal/geom"
)

// ConnectReply announces the world geometry to a freshly connected client.
type ConnectReply struct {
	DomainMin geom.Point
	DomainMax geom.Point
	NumAtoms  [3]int32
}

// WriteConnectReply emits the CONNECT_REPLY frame. The caller holds the
// pipe's write lock.
func WriteConnectReply(p *Pipe, msg ConnectReply) error {
	if err := p.WriteMessageID(MsgConnectReply); err != nil {
		return err
	}
	if err := p.WritePoint(msg.DomainMin); err != nil {
		return err
	}
	if err := p.WritePoint(msg.DomainMax); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if err := p.WriteInt32(msg.NumAtoms[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadConnectReply decodes the payload following a CONNECT_REPLY id.
func ReadConnectReply(p *Pipe) (ConnectReply, error) {
	var msg ConnectReply
	var err error
	if msg.DomainMin, err = p.ReadPoint(); err != nil {
		return msg, err
	}
	if msg.DomainMax, err = p.ReadPoint(); err != nil {
		return msg, err
	}
	for i := 0; i < 3; i++ {
		if msg.NumAtoms[i], err = p.ReadInt32(); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

// ParamUpdate carries the three global simulation scalars. The same payload
// travels upstream as CLIENT_PARAMUPDATE and downstream as
// SERVER_PARAMUPDATE.
type ParamUpdate struct {
	AtomMass    geom.Scalar
	Attenuation geom.Scalar
	Gravity     geom.Scalar
}

// WriteParamUpdate emits a parameter update frame under the given id.
func WriteParamUpdate(p *Pipe, id MessageID, msg ParamUpdate) error {
	if id != MsgClientParamUpdate && id != MsgServerParamUpdate {
		return fmt.Errorf("invalid parameter update id %s", id)
	}
	if err := p.WriteMessageID(id); err != nil {
		return err
	}
	if err := p.WriteScalar(msg.AtomMass); err != nil {
		return err
	}
	if err := p.WriteScalar(msg.Attenuation); err != nil {
		return err
	}
	return p.WriteScalar(msg.Gravity)
}

// ReadParamUpdate decodes the payload following a parameter update id.
func ReadParamUpdate(p *Pipe) (ParamUpdate, error) {
	var msg ParamUpdate
	var err error
	if msg.AtomMass, err = p.ReadScalar(); err != nil {
		return msg, err
	}
	if msg.Attenuation, err = p.ReadScalar(); err != nil {
		return msg, err
	}
	if msg.Gravity, err = p.ReadScalar(); err != nil {
		return msg, err
	}
	return msg, nil
}

// DraggerState is one entry of a CLIENT_UPDATE: the pose and activation of a
// single client-side 6DOF manipulator.
type DraggerState struct {
	ID        uint32
	RayBased  bool
	Ray       geom.Ray
	Transform geom.ONTransform
	Active    bool
}

// WriteClientUpdate emits a CLIENT_UPDATE frame with the full dragger list.
func WriteClientUpdate(p *Pipe, draggers []DraggerState) error {
	if err := p.WriteMessageID(MsgClientUpdate); err != nil {
		return err
	}
	if err := p.WriteInt32(int32(len(draggers))); err != nil {
		return err
	}
	for i := range draggers {
		d := &draggers[i]
		if err := p.WriteUint32(d.ID); err != nil {
			return err
		}
		rayBased := int32(0)
		if d.RayBased {
			rayBased = 1
		}
		if err := p.WriteInt32(rayBased); err != nil {
			return err
		}
		if err := p.WriteRay(d.Ray); err != nil {
			return err
		}
		if err := p.WriteONTransform(d.Transform); err != nil {
			return err
		}
		if err := p.WriteBool(d.Active); err != nil {
			return err
		}
	}
	return nil
}

// ReadClientUpdateInto decodes a CLIENT_UPDATE payload into dst, reallocating
// the slice only when the dragger count changed since the previous frame.
func ReadClientUpdateInto(p *Pipe, dst *[]DraggerState) error {
	count, err := p.ReadInt32()
	if err != nil {
		return err
	}
	if count < 0 {
		return &PipeError{Op: "read dragger count", Err: fmt.Errorf("negative count %d", count)}
	}
	if int(count) != len(*dst) {
		*dst = make([]DraggerState, count)
	}
	draggers := *dst
	for i := range draggers {
		d := &draggers[i]
		if d.ID, err = p.ReadUint32(); err != nil {
			return err
		}
		rayBased, err := p.ReadInt32()
		if err != nil {
			return err
		}
		d.RayBased = rayBased != 0
		if d.Ray, err = p.ReadRay(); err != nil {
			return err
		}
		if d.Transform, err = p.ReadONTransform(); err != nil {
			return err
		}
		if d.Active, err = p.ReadBool(); err != nil {
			return err
		}
	}
	return nil
}
