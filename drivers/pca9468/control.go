package pca9468

import "time"

const (
	startupDelay  = 50 * time.Millisecond // leaving forced standby
	shutdownDelay = 5 * time.Millisecond  // entering forced standby
)

// IinCode maps an input current limit onto IIN_CFG. The limit is rounded
// off and raised one step so the register never clips the target.
func IinCode(uA int32) byte {
	v := int64(uA) + 50_000
	if v > iinCfgMax_uA {
		v = iinCfgMax_uA
	}
	if v < 0 {
		v = 0
	}
	code := v/iinCfgStep_uA + 1
	if code > iinCfgMaxCode {
		code = iinCfgMaxCode
	}
	return byte(code)
}

// VfloatCode maps a float voltage onto V_FLOAT, clamped to 3.725..5.0 V.
func VfloatCode(uV int32) byte {
	if uV < vfloatMin_uV {
		uV = vfloatMin_uV
	}
	if uV > vfloatMax_uV {
		uV = vfloatMax_uV
	}
	return byte((uV - vfloatMin_uV) / vfloatStep_uV)
}

func (d *Device) SetInputCurrent(uA int32) error {
	return d.updateReg(regIinCtrl, iinCfgMask, IinCode(uA))
}

func (d *Device) SetFloatVoltage(uV int32) error {
	return d.writeReg(regVFloat, VfloatCode(uV))
}

func (d *Device) SetSwitchingFreq(code uint8) error {
	if code > uint8(StartFswMask) {
		return ErrBadSwitchFreq
	}
	return d.updateReg(regStartCtrl, byte(StartFswMask), code)
}

// SetEnable leaves or enters forced standby. Leaving standby enables die
// temperature regulation and, if configured, NTC protection; entering it
// drops NTC protection first.
func (d *Device) SetEnable(on bool) error {
	if !on {
		if err := d.updateReg(regTempCtrl, ntcProtectionEn, 0); err != nil {
			return err
		}
		if err := d.updateReg(regStartCtrl, byte(StartStandbyEn), byte(StartStandbyEn)); err != nil {
			return err
		}
		d.sleep(shutdownDelay)
		return nil
	}
	if err := d.updateReg(regStartCtrl, byte(StartStandbyEn), 0); err != nil {
		return err
	}
	d.sleep(startupDelay)
	var ntc byte
	if d.ntc {
		ntc = ntcProtectionEn
	}
	return d.updateReg(regTempCtrl, ntcProtectionEn|tempRegEn, ntc|tempRegEn)
}

// SetRCPDetect toggles reverse input current detection.
func (d *Device) SetRCPDetect(on bool) error {
	var v byte
	if on {
		v = byte(StartRevIinDet)
	}
	return d.updateReg(regStartCtrl, byte(StartRevIinDet), v)
}

// SetWatchdog enables the charger watchdog with the configured timeout,
// or disables it.
func (d *Device) SetWatchdog(on bool) error {
	if !on {
		return d.updateReg(regSafetyCtrl, watchdogEn, 0)
	}
	v := byte(d.wdt)<<watchdogCfgShift | watchdogEn
	return d.updateReg(regSafetyCtrl, watchdogEn|watchdogCfgMask, v)
}

// KickWatchdog refreshes the watchdog with a harmless read.
func (d *Device) KickWatchdog() error {
	_, err := d.readReg(regDeviceInfo)
	return err
}

func (d *Device) SetOVDelta(v OVDelta) error {
	return d.updateReg(regSafetyCtrl, ovDeltaMask, byte(v)<<ovDeltaShift)
}
