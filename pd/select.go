package pd

// Capability is the ceiling of one selected source power object.
type Capability struct {
	Index  uint8 // 1-based object position
	Fixed  bool
	MaxVol int32 // µV
	MaxCur int32 // µA
	MaxPwr int32 // µW
}

// power in µW from µV and µA without overflowing int32 intermediates.
func power(uV, uA int32) int32 {
	return int32(int64(uV) / 1000 * int64(uA) / 1000)
}

// SelectAPDO picks the PPS object whose maximum voltage reaches minMaxVol
// and offers the most power. The returned current is limited to wantCur
// when wantCur > 0; power stays the object's full budget.
func SelectAPDO(pdos []PDO, minMaxVol, wantCur int32) (Capability, error) {
	var best Capability
	found := false
	for i, p := range pdos {
		if p.Type() != PDOTypePPS {
			continue
		}
		pps := PPSPDO(p)
		if pps.MaxVoltage() < minMaxVol {
			continue
		}
		pwr := power(pps.MaxVoltage(), pps.MaxCurrent())
		if found && pwr <= best.MaxPwr {
			continue
		}
		best = Capability{
			Index:  uint8(i + 1),
			MaxVol: pps.MaxVoltage(),
			MaxCur: pps.MaxCurrent(),
			MaxPwr: pwr,
		}
		found = true
	}
	if !found {
		return Capability{}, ErrNoAPDO
	}
	if wantCur > 0 && best.MaxCur > wantCur {
		best.MaxCur = wantCur
	}
	return best, nil
}

// SelectFixed picks the fixed object whose voltage is nearest to vol. On a
// tie the lower voltage wins.
func SelectFixed(pdos []PDO, vol int32) (Capability, error) {
	var best Capability
	var bestDiff int32
	found := false
	for i, p := range pdos {
		if p.Type() != PDOTypeFixed {
			continue
		}
		f := FixedPDO(p)
		d := f.Voltage() - vol
		if d < 0 {
			d = -d
		}
		if found && (d > bestDiff || (d == bestDiff && f.Voltage() >= best.MaxVol)) {
			continue
		}
		best = Capability{
			Index:  uint8(i + 1),
			Fixed:  true,
			MaxVol: f.Voltage(),
			MaxCur: f.MaxCurrent(),
			MaxPwr: power(f.Voltage(), f.MaxCurrent()),
		}
		bestDiff = d
		found = true
	}
	if !found {
		return Capability{}, ErrNoFixed
	}
	return best, nil
}
