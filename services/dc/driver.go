package dc

import (
	"directcharge-go/drivers/pca9468"
	"directcharge-go/errcode"
	"directcharge-go/types"
)

// Driver adapts a PCA9468 to the Charger port.
type Driver struct {
	dev *pca9468.Device
}

func NewDriver(dev *pca9468.Device) *Driver { return &Driver{dev: dev} }

func (d *Driver) Prepare() error                 { return d.dev.Prepare() }
func (d *Driver) Enable(on bool) error           { return d.dev.SetEnable(on) }
func (d *Driver) SetInputCurrent(uA int32) error { return d.dev.SetInputCurrent(uA) }
func (d *Driver) SetFloatVoltage(uV int32) error { return d.dev.SetFloatVoltage(uV) }
func (d *Driver) SetSwitchFreq(code uint8) error { return d.dev.SetSwitchingFreq(code) }
func (d *Driver) SetRCPDetect(on bool) error     { return d.dev.SetRCPDetect(on) }
func (d *Driver) SetWatchdog(on bool) error      { return d.dev.SetWatchdog(on) }
func (d *Driver) KickWatchdog() error            { return d.dev.KickWatchdog() }

// SetOVDelta takes the VIN over-voltage margin in percent.
func (d *Driver) SetOVDelta(pct int32) error {
	code, ok := ovDeltaCode(pct)
	if !ok {
		return errcode.InvalidParams
	}
	return d.dev.SetOVDelta(code)
}

func ovDeltaCode(pct int32) (pca9468.OVDelta, bool) {
	switch pct {
	case 10:
		return pca9468.OVDelta10, true
	case 20:
		return pca9468.OVDelta20, true
	case 30:
		return pca9468.OVDelta30, true
	case 40:
		return pca9468.OVDelta40, true
	}
	return 0, false
}

// Sample reads the status banks and the four telemetry channels.
func (d *Driver) Sample() (types.DCSample, error) {
	st, err := d.dev.ReadStatus()
	if err != nil {
		return types.DCSample{}, err
	}
	out := types.DCSample{Status: StatusFlags(st)}
	reads := [...]struct {
		ch  pca9468.Channel
		dst *int32
	}{
		{pca9468.ChVIN, &out.VIN},
		{pca9468.ChIIN, &out.IIN},
		{pca9468.ChVBAT, &out.VBAT},
		{pca9468.ChDieTemp, &out.DieTemp},
	}
	for _, r := range reads {
		v, err := d.dev.ReadADC(r.ch)
		if err != nil {
			return types.DCSample{}, err
		}
		*r.dst = v
	}
	return out, nil
}

// StatusFlags normalises the register banks into types.DCStatus.
func StatusFlags(st pca9468.Status) types.DCStatus {
	var f types.DCStatus
	set := func(on bool, b types.DCStatus) {
		if on {
			f |= b
		}
	}
	set(st.Active(), types.DCActive)
	set(st.Standby(), types.DCStandby)
	set(st.Shutdown(), types.DCShutdown)

	set(st.Int1.Has(pca9468.Int1VOK), types.DCVinOK)
	set(st.Int1.Has(pca9468.Int1NTCTemp), types.DCNTC)
	set(st.Int1.Has(pca9468.Int1TempReg), types.DCTempReg)
	set(st.Int1.Has(pca9468.Int1CtrlLimit), types.DCCtrlLimit)
	set(st.Int1.Has(pca9468.Int1Timer), types.DCTimer)

	set(st.A.Has(pca9468.StsAIinLoop), types.DCIinLoop)
	set(st.A.Has(pca9468.StsAChgLoop), types.DCChgLoop)
	set(st.A.Has(pca9468.StsAVfltLoop), types.DCVfltLoop)
	set(st.A.Has(pca9468.StsACflyShort), types.DCCflyShort)
	set(st.A.Has(pca9468.StsAVoutUV), types.DCVoutUV)
	set(st.A.Has(pca9468.StsAVbatOV), types.DCVbatOV)
	set(st.A.Has(pca9468.StsAVinOV), types.DCVinOV)
	set(st.A.Has(pca9468.StsAVinUV), types.DCVinUV)

	set(st.B.Has(pca9468.StsBOCPFast), types.DCOCPFast)
	set(st.B.Has(pca9468.StsBOCPAvg), types.DCOCPAvg)
	set(st.B.Has(pca9468.StsBChargeTimer), types.DCChargeTmr)
	set(st.B.Has(pca9468.StsBWatchdog), types.DCWatchdog)
	return f
}
