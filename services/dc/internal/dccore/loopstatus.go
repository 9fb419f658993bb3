package dccore

import "directcharge-go/types"

// loopStatus is the single regulation condition a CC or CV routine acts on.
type loopStatus uint8

const (
	loopInactive loopStatus = iota
	loopVinUV
	loopChg
	loopVflt
	loopIin
	loopDone
)

func (l loopStatus) String() string {
	switch l {
	case loopVinUV:
		return "vin_uv"
	case loopChg:
		return "chg_loop"
	case loopVflt:
		return "vflt_loop"
	case loopIin:
		return "iin_loop"
	case loopDone:
		return "done"
	}
	return "inactive"
}

// ccLoop classifies the loop flags during constant current.
func ccLoop(s *Session, tel Telemetry) loopStatus {
	st := tel.Status
	switch {
	case s.Params.FGVfloat && vbatOf(s, tel) > s.Vfloat:
		return loopVflt
	case st.Has(types.DCVinUV):
		return loopVinUV
	case st.Has(types.DCChgLoop):
		return loopChg
	case st.Has(types.DCVfltLoop):
		return loopVflt
	case st.Has(types.DCIinLoop):
		return loopIin
	}
	return loopInactive
}

// cvLoop classifies the loop flags during constant voltage, including
// charge termination.
func cvLoop(s *Session, tel Telemetry) loopStatus {
	st := tel.Status
	if s.Adapter == AdapterFPDO {
		vnow := tel.GaugeVBAT
		if vnow == 0 {
			vnow = tel.VBAT
		}
		if tel.IIN < s.Params.FpdoIinTopoff || vnow >= s.Params.FpdoVnowTopoff {
			return loopDone
		}
	}
	switch {
	case tel.IIN < s.Params.IinTopoff:
		return loopDone
	case s.Params.FGVfloat && vbatOf(s, tel) > s.Vfloat:
		return loopVflt
	case st.Has(types.DCChgLoop):
		return loopChg
	case st.Has(types.DCVfltLoop):
		return loopVflt
	case st.Has(types.DCIinLoop):
		return loopIin
	case st.Has(types.DCVinUV):
		return loopVinUV
	}
	return loopInactive
}
