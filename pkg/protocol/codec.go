// Package protocol defines the fixed-size little-endian wire formats
// exchanged between the gateway and its clients.
//
// The layouts are version-locked: there is no negotiation, and any field
// change is a breaking protocol change. Floats travel as raw IEEE-754
// binary32/binary64 bit patterns so that non-Go peers can decode without
// struct-packing assumptions.
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed packet sizes in bytes.
const (
	// StatePacketSize = seq(u32) + t_mono(f64) + imu(9*f32) + ang(3*f32)
	// + enc(4*i32) + battery(f32).
	StatePacketSize = 4 + 8 + 36 + 12 + 16 + 4 // 80

	// ActionPacketSize = seq(u32) + motors(4*u16) + beep_ms(u16) + flags(u8).
	ActionPacketSize = 4 + 10 + 1 // 15
)

// ErrMalformedPacket is returned when a buffer's length does not match the
// expected packet size. Decoding never partially populates a result.
var ErrMalformedPacket = fmt.Errorf("protocol: malformed packet")

// EncodeState serializes a State snapshot. It never fails and always
// returns exactly StatePacketSize bytes.
func EncodeState(st State) []byte {
	buf := make([]byte, StatePacketSize)
	o := 0
	o = putU32(buf, o, st.Seq)
	o = putF64(buf, o, st.TMono)
	o = putVec3(buf, o, st.IMU.Acc)
	o = putVec3(buf, o, st.IMU.Gyro)
	o = putVec3(buf, o, st.IMU.Mag)
	o = putF32(buf, o, st.Ang.Roll)
	o = putF32(buf, o, st.Ang.Pitch)
	o = putF32(buf, o, st.Ang.Yaw)
	o = putI32(buf, o, st.Enc.E1)
	o = putI32(buf, o, st.Enc.E2)
	o = putI32(buf, o, st.Enc.E3)
	o = putI32(buf, o, st.Enc.E4)
	putF32(buf, o, st.Battery)
	return buf
}

// DecodeState parses a State packet. Any 80-byte buffer decodes to some
// value; range validation, if any, happens at apply time.
func DecodeState(pkt []byte) (State, error) {
	if len(pkt) != StatePacketSize {
		return State{}, fmt.Errorf("%w: state packet length %d, want %d",
			ErrMalformedPacket, len(pkt), StatePacketSize)
	}
	var st State
	o := 0
	st.Seq, o = getU32(pkt, o)
	st.TMono, o = getF64(pkt, o)
	st.IMU.Acc, o = getVec3(pkt, o)
	st.IMU.Gyro, o = getVec3(pkt, o)
	st.IMU.Mag, o = getVec3(pkt, o)
	st.Ang.Roll, o = getF32(pkt, o)
	st.Ang.Pitch, o = getF32(pkt, o)
	st.Ang.Yaw, o = getF32(pkt, o)
	st.Enc.E1, o = getI32(pkt, o)
	st.Enc.E2, o = getI32(pkt, o)
	st.Enc.E3, o = getI32(pkt, o)
	st.Enc.E4, o = getI32(pkt, o)
	st.Battery, _ = getF32(pkt, o)
	return st, nil
}

// EncodeActions serializes a command. It never fails and always returns
// exactly ActionPacketSize bytes.
func EncodeActions(a Actions) []byte {
	buf := make([]byte, ActionPacketSize)
	o := 0
	o = putU32(buf, o, a.Seq)
	o = putI16(buf, o, a.Motors.M1)
	o = putI16(buf, o, a.Motors.M2)
	o = putI16(buf, o, a.Motors.M3)
	o = putI16(buf, o, a.Motors.M4)
	o = putU16(buf, o, a.BeepMs)
	buf[o] = a.Flags
	return buf
}

// DecodeActions parses a command packet. Field values are reinterpreted
// verbatim; any 15-byte buffer decodes.
func DecodeActions(pkt []byte) (Actions, error) {
	if len(pkt) != ActionPacketSize {
		return Actions{}, fmt.Errorf("%w: action packet length %d, want %d",
			ErrMalformedPacket, len(pkt), ActionPacketSize)
	}
	var a Actions
	o := 0
	a.Seq, o = getU32(pkt, o)
	a.Motors.M1, o = getI16(pkt, o)
	a.Motors.M2, o = getI16(pkt, o)
	a.Motors.M3, o = getI16(pkt, o)
	a.Motors.M4, o = getI16(pkt, o)
	a.BeepMs, o = getU16(pkt, o)
	a.Flags = pkt[o]
	return a, nil
}

func putU16(buf []byte, o int, v uint16) int {
	binary.LittleEndian.PutUint16(buf[o:], v)
	return o + 2
}

func putI16(buf []byte, o int, v int16) int {
	return putU16(buf, o, uint16(v))
}

func putU32(buf []byte, o int, v uint32) int {
	binary.LittleEndian.PutUint32(buf[o:], v)
	return o + 4
}

func putI32(buf []byte, o int, v int32) int {
	return putU32(buf, o, uint32(v))
}

func putF32(buf []byte, o int, v float32) int {
	return putU32(buf, o, math.Float32bits(v))
}

func putF64(buf []byte, o int, v float64) int {
	binary.LittleEndian.PutUint64(buf[o:], math.Float64bits(v))
	return o + 8
}

func putVec3(buf []byte, o int, v Vec3) int {
	o = putF32(buf, o, v.X)
	o = putF32(buf, o, v.Y)
	return putF32(buf, o, v.Z)
}

func getU16(pkt []byte, o int) (uint16, int) {
	return binary.LittleEndian.Uint16(pkt[o:]), o + 2
}

func getI16(pkt []byte, o int) (int16, int) {
	v, o := getU16(pkt, o)
	return int16(v), o
}

func getU32(pkt []byte, o int) (uint32, int) {
	return binary.LittleEndian.Uint32(pkt[o:]), o + 4
}

func getI32(pkt []byte, o int) (int32, int) {
	v, o := getU32(pkt, o)
	return int32(v), o
}

func getF32(pkt []byte, o int) (float32, int) {
	v, o := getU32(pkt, o)
	return math.Float32frombits(v), o
}

func getF64(pkt []byte, o int) (float64, int) {
	return math.Float64frombits(binary.LittleEndian.Uint64(pkt[o:])), o + 8
}

func getVec3(pkt []byte, o int) (Vec3, int) {
	var v Vec3
	v.X, o = getF32(pkt, o)
	v.Y, o = getF32(pkt, o)
	v.Z, o = getF32(pkt, o)
	return v, o
}
