// Package pd encodes and decodes the USB Power Delivery data objects a
// direct charger needs: source power objects and request objects for
// Fixed and Programmable (PPS/APDO) supplies.
//
// All public quantities are integer µ-units (µV, µA, µW).
package pd

import "errors"

var (
	ErrNoAPDO  = errors.New("no programmable power object satisfies the request")
	ErrNoFixed = errors.New("no fixed power object")
)

// Request resolution.
const (
	PPSVolStep_uV   = 20_000
	PPSCurStep_uA   = 50_000
	FixedCurStep_uA = 10_000
)

// PDO is a generic Power Data Object as found in a Source_Capabilities
// message.
type PDO uint32

// PDOType is the supply type of a power data object.
type PDOType uint8

const (
	PDOTypeFixed    PDOType = 0b00
	PDOTypeBattery  PDOType = 0b01
	PDOTypeVariable PDOType = 0b10
	PDOTypePPS      PDOType = 0b111 // augmented, SPR PPS
	PDOTypeOtherAPD PDOType = 0b011 // augmented, anything else
)

func (o PDO) Type() PDOType {
	h := (o >> 30) & 0b11
	if h != 0b11 {
		return PDOType(h)
	}
	if (o>>28)&0b11 == 0 {
		return PDOTypePPS
	}
	return PDOTypeOtherAPD
}

// FixedPDO is a Fixed Supply power data object.
type FixedPDO uint32

// NewFixedPDO builds a fixed object; voltage rounds to 50 mV, current to 10 mA.
func NewFixedPDO(uV, uA int32) FixedPDO {
	return FixedPDO((uint32(uV/50_000)&0x3FF)<<10 | uint32(uA/10_000)&0x3FF)
}

func (o FixedPDO) Voltage() int32    { return int32((o>>10)&0x3FF) * 50_000 }
func (o FixedPDO) MaxCurrent() int32 { return int32(o&0x3FF) * 10_000 }

// PPSPDO is a Programmable Power Supply augmented power data object.
type PPSPDO uint32

// NewPPSPDO builds a PPS object; voltages round to 100 mV, current to 50 mA.
func NewPPSPDO(minUV, maxUV, maxUA int32) PPSPDO {
	return PPSPDO(0b11<<30 |
		(uint32(maxUV/100_000)&0xFF)<<17 |
		(uint32(minUV/100_000)&0xFF)<<8 |
		uint32(maxUA/50_000)&0x7F)
}

func (o PPSPDO) MinVoltage() int32 { return int32((o>>8)&0xFF) * 100_000 }
func (o PPSPDO) MaxVoltage() int32 { return int32((o>>17)&0xFF) * 100_000 }
func (o PPSPDO) MaxCurrent() int32 { return int32(o&0x7F) * 50_000 }

// RequestDO is a Request data object.
type RequestDO uint32

// ObjectPosition returns the 1-based position of the selected PDO.
func (o RequestDO) ObjectPosition() uint8 { return uint8(o >> 28) }

func (o *RequestDO) SetObjectPosition(p uint8) {
	*o = (*o &^ (RequestDO(0b1111) << 28)) | RequestDO(p&0b1111)<<28
}

// PPSOutputVoltage returns the requested output voltage (20 mV units).
func (o RequestDO) PPSOutputVoltage() int32 { return int32((o>>9)&0xFFF) * PPSVolStep_uV }

func (o *RequestDO) SetPPSOutputVoltage(uV int32) {
	*o = (*o &^ (RequestDO(0xFFF) << 9)) | (RequestDO(uV/PPSVolStep_uV)&0xFFF)<<9
}

// PPSOutputCurrent returns the requested operating current (50 mA units).
func (o RequestDO) PPSOutputCurrent() int32 { return int32(o&0x7F) * PPSCurStep_uA }

func (o *RequestDO) SetPPSOutputCurrent(uA int32) {
	*o = (*o &^ RequestDO(0x7F)) | RequestDO(uA/PPSCurStep_uA)&0x7F
}

// FixedOperatingCurrent returns the operating current (10 mA units).
func (o RequestDO) FixedOperatingCurrent() int32 {
	return int32((o>>10)&0x3FF) * FixedCurStep_uA
}

func (o *RequestDO) SetFixedOperatingCurrent(uA int32) {
	*o = (*o &^ (RequestDO(0x3FF) << 10)) | (RequestDO(uA/FixedCurStep_uA)&0x3FF)<<10
}

// FixedMaxOperatingCurrent returns the maximum operating current (10 mA units).
func (o RequestDO) FixedMaxOperatingCurrent() int32 {
	return int32(o&0x3FF) * FixedCurStep_uA
}

func (o *RequestDO) SetFixedMaxOperatingCurrent(uA int32) {
	*o = (*o &^ RequestDO(0x3FF)) | RequestDO(uA/FixedCurStep_uA)&0x3FF
}

// PPSRequest encodes a programmable request. Values are truncated to
// the PPS resolution.
func PPSRequest(pos uint8, uV, uA int32) RequestDO {
	var r RequestDO
	r.SetObjectPosition(pos)
	r.SetPPSOutputVoltage(uV)
	r.SetPPSOutputCurrent(uA)
	return r
}

// FixedRequest encodes a fixed request with operating == maximum current.
func FixedRequest(pos uint8, uA int32) RequestDO {
	var r RequestDO
	r.SetObjectPosition(pos)
	r.SetFixedOperatingCurrent(uA)
	r.SetFixedMaxOperatingCurrent(uA)
	return r
}
