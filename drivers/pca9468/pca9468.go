// Package pca9468 provides a minimal TinyGo driver for the NXP PCA9468
// 2:1 switched-capacitor direct charger.
//
// Design notes (datasheet references):
// • I2C, 8-bit registers, auto-incrementing bulk reads.
// • Default 7-bit address = 0b1010111.
// • Integer-only ADC scaling (VIN, VOUT, VBAT, IIN, IOUT, DIETEMP, NTC).
// • Standby is forced by START_CTRL.STANDBY_EN; leaving standby needs ~50 ms.
// • Any I2C access refreshes the charger watchdog.

package pca9468

import (
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// ---------------- Top level vars ----------------

var (
	ErrBadDeviceID   = errors.New("unexpected device id")
	ErrBadSwitchFreq = errors.New("switching frequency code out of range")
	ErrBadChannel    = errors.New("unknown adc channel")
)

// Register access attempts before a read gives up.
const readAttempts = 3

// RegError reports a failed register access.
type RegError struct {
	Reg byte
	Op  string // "read" or "write"
	Err error
}

func (e *RegError) Error() string {
	return "pca9468 " + e.Op + " reg 0x" + hex2(e.Reg) + ": " + e.Err.Error()
}

func (e *RegError) Unwrap() error { return e.Err }

func hex2(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

// ---------------- Types and configuration ----------------

type Config struct {
	Address uint16

	// SnsRes10mOhm selects the 10 mOhm current sense resistor (5 mOhm otherwise).
	SnsRes10mOhm bool
	// FswCfg is the switching-frequency code programmed at Configure.
	FswCfg uint8
	// NTCProtect enables NTC protection while charging.
	NTCProtect bool
	// IINCompGain is the IIN ADC compensation gain in percent.
	IINCompGain int32
	// Watchdog timeout used when the watchdog is enabled.
	Watchdog Watchdog

	// Sleep is used for the standby sequencing delays; nil means time.Sleep.
	Sleep func(time.Duration)
}

func DefaultConfig() Config {
	return Config{
		Address:     AddressDefault,
		FswCfg:      3,
		NTCProtect:  false,
		IINCompGain: 0,
		Watchdog:    Watchdog40s,
	}
}

func (c Config) Validate() error {
	if c.FswCfg > uint8(StartFswMask) {
		return ErrBadSwitchFreq
	}
	return nil
}

type Device struct {
	i2c  drivers.I2C
	addr uint16

	snsres10 bool
	fsw      uint8
	ntc      bool
	iinGain  int32
	wdt      Watchdog
	sleep    func(time.Duration)

	// Register access is serialised; held only for one transaction.
	mu sync.Mutex
	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [9]byte
}

func New(i2c drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Device{
		i2c:      i2c,
		addr:     addr,
		snsres10: cfg.SnsRes10mOhm,
		fsw:      cfg.FswCfg,
		ntc:      cfg.NTCProtect,
		iinGain:  cfg.IINCompGain,
		wdt:      cfg.Watchdog,
		sleep:    sleep,
	}
}

// Configure checks the device id and programs the power-on baseline:
// OV delta 30%, switching frequency, 120 C die regulation, sense
// resistor, reverse-current detection, EN active low, forced standby and
// all ADC channels.
func (d *Device) Configure() error {
	id, err := d.readReg(regDeviceInfo)
	if err != nil {
		return err
	}
	if id != DeviceID {
		return ErrBadDeviceID
	}
	if err := d.SetOVDelta(OVDelta30); err != nil {
		return err
	}
	if err := d.SetSwitchingFreq(d.fsw); err != nil {
		return err
	}
	if err := d.updateReg(regTempCtrl, tempRegMask, tempReg120C<<tempRegShift); err != nil {
		return err
	}
	var sns byte
	if d.snsres10 {
		sns = byte(StartSnsRes)
	}
	if err := d.updateReg(regStartCtrl, byte(StartSnsRes), sns); err != nil {
		return err
	}
	ctl := StartRevIinDet | StartEnCfg | StartStandbyEn
	if err := d.updateReg(regStartCtrl, byte(ctl), byte(ctl)); err != nil {
		return err
	}
	if err := d.updateReg(regIinCtrl, iinLimitIncrementEn, 0); err != nil {
		return err
	}
	return d.writeReg(regADCCfg, adcChAll)
}

// Prepare readies the device for a new charging session: forced standby,
// latched interrupts cleared and the ADC in continuous mode.
func (d *Device) Prepare() error {
	if err := d.updateReg(regStartCtrl, byte(StartStandbyEn), byte(StartStandbyEn)); err != nil {
		return err
	}
	if _, err := d.readReg(regInt1); err != nil {
		return err
	}
	return d.updateReg(regADCCtrl, adcForceModeMask, adcModeNormal<<adcForceModeShift)
}

// ---------------- Register access ----------------

func (d *Device) readReg(reg byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.w[0] = reg
	var err error
	for i := 0; i < readAttempts; i++ {
		if err = d.i2c.Tx(d.addr, d.w[:1], d.r[:1]); err == nil {
			return d.r[0], nil
		}
	}
	return 0, &RegError{Reg: reg, Op: "read", Err: err}
}

// readRegs fills out with consecutive registers starting at reg.
func (d *Device) readRegs(reg byte, out []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.w[0] = reg
	n := len(out)
	var err error
	for i := 0; i < readAttempts; i++ {
		if err = d.i2c.Tx(d.addr, d.w[:1], d.r[:n]); err == nil {
			copy(out, d.r[:n])
			return nil
		}
	}
	return &RegError{Reg: reg, Op: "read", Err: err}
}

func (d *Device) writeReg(reg, val byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.w[0] = reg
	d.w[1] = val
	if err := d.i2c.Tx(d.addr, d.w[:2], nil); err != nil {
		return &RegError{Reg: reg, Op: "write", Err: err}
	}
	return nil
}

// updateReg is the read-modify-write helper for bitfields.
func (d *Device) updateReg(reg, mask, val byte) error {
	cur, err := d.readReg(reg)
	if err != nil {
		return err
	}
	next := (cur &^ mask) | (val & mask)
	if next == cur {
		return nil
	}
	return d.writeReg(reg, next)
}
