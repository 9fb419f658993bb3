package pca9468

// Channel selects an ADC measurement.
type Channel uint8

const (
	ChVIN     Channel = iota // µV
	ChVOUT                   // µV
	ChVBAT                   // µV
	ChIIN                    // µA, compensated
	ChIOUT                   // µA
	ChDieTemp                // deci-degrees C
	ChNTC                    // µV
)

// ADC scaling per LSB.
const (
	vinStep_uV  = 16_000
	voutStep_uV = 5_000
	vbatStep_uV = 5_000
	iinStep_uA  = 4_890
	ioutStep_uA = 9_780
	ntcStep_uV  = 2_346

	iinOffset_uA = 900_000

	dieTempRef    = 935
	dieTempMin_dC = -250
	dieTempMax_dC = 1200
)

// ReadADC reads one channel and converts it to physical units.
func (d *Device) ReadADC(ch Channel) (int32, error) {
	var b [2]byte
	switch ch {
	case ChVIN:
		if err := d.readRegs(regStsADC3, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1]&0x3F)<<4 | int32(b[0]&0xF0)>>4
		return raw * vinStep_uV, nil

	case ChVOUT:
		if err := d.readRegs(regStsADC4, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1])<<2 | int32(b[0]&0xC0)>>6
		return raw * voutStep_uV, nil

	case ChVBAT:
		if err := d.readRegs(regStsADC6, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1]&0x03)<<8 | int32(b[0])
		return raw * vbatStep_uV, nil

	case ChIIN:
		if err := d.readRegs(regStsADC1, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1]&0x03)<<8 | int32(b[0])
		return iinFromRaw(raw, d.iinGain), nil

	case ChIOUT:
		if err := d.readRegs(regStsADC2, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1]&0x0F)<<6 | int32(b[0]&0xFC)>>2
		return raw * ioutStep_uA, nil

	case ChDieTemp:
		if err := d.readRegs(regStsADC7, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1]&0x0F)<<6 | int32(b[0]&0xFC)>>2
		return dieTempFromRaw(raw), nil

	case ChNTC:
		if err := d.readRegs(regStsADC8, b[:]); err != nil {
			return 0, err
		}
		raw := int32(b[1]&0x3F)<<4 | int32(b[0]&0xF0)>>4
		return raw * ntcStep_uV, nil
	}
	return 0, ErrBadChannel
}

// iin = raw*4.89 mA + (raw*4.89 mA - 900 mA)*gain/100, floored at zero.
func iinFromRaw(raw, gainPct int32) int32 {
	base := int64(raw) * iinStep_uA
	v := base + (base-iinOffset_uA)*int64(gainPct)/100
	if v < 0 {
		return 0
	}
	return int32(v)
}

// T = (935 - raw) * 0.435 C, reported in deci-degrees.
func dieTempFromRaw(raw int32) int32 {
	t := (dieTempRef - raw) * 435 / 100
	if t < dieTempMin_dC {
		return dieTempMin_dC
	}
	if t > dieTempMax_dC {
		return dieTempMax_dC
	}
	return t
}
