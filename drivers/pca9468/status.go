package pca9468

// Status is one consistent snapshot of the interrupt and status banks.
type Status struct {
	Int1 Int1Bits // INT1_STS
	A    StsABits
	B    StsBBits
}

// Active reports the switching state.
func (s Status) Active() bool { return s.B.Has(StsBActive) }

// Standby reports the standby state.
func (s Status) Standby() bool { return s.B.Has(StsBStandby) }

// Shutdown reports the shutdown state.
func (s Status) Shutdown() bool { return s.B.Has(StsBShutdown) }

// ReadStatus reads INT1_STS, STS_A and STS_B in one bulk transfer.
func (d *Device) ReadStatus() (Status, error) {
	var buf [3]byte
	if err := d.readRegs(regInt1Sts, buf[:]); err != nil {
		return Status{}, err
	}
	return Status{
		Int1: Int1Bits(buf[0]),
		A:    StsABits(buf[1]),
		B:    StsBBits(buf[2]),
	}, nil
}

// ReadInterrupts returns and clears the latched INT1 bank.
func (d *Device) ReadInterrupts() (Int1Bits, error) {
	v, err := d.readReg(regInt1)
	return Int1Bits(v), err
}

// ReadStartCtrl returns START_CTRL.
func (d *Device) ReadStartCtrl() (StartCtrlBits, error) {
	v, err := d.readReg(regStartCtrl)
	return StartCtrlBits(v), err
}

// NTCProtectionEnabled reports TEMP_CTRL.NTC_PROTECTION_EN.
func (d *Device) NTCProtectionEnabled() (bool, error) {
	v, err := d.readReg(regTempCtrl)
	return v&ntcProtectionEn != 0, err
}
