package dccore

import "directcharge-go/types"

// Classify interprets one status sample for the session's current state.
//
// A standby read with no protection flag is ambiguous: the first time it
// returns Recheck and the caller re-reads after RCPRecheck with
// s.rcpRecheck set. On that re-read an active charger means reverse
// current protection tripped and recovered. That is a completed charge
// only in a CV-type state with the previous VBAT at or above vfloat.
func Classify(s *Session, tel Telemetry) (Outcome, string) {
	st := tel.Status
	vbat := vbatOf(s, tel)

	if s.rcpRecheck {
		switch {
		case st.Has(types.DCActive):
			if s.State.cvLike() && s.PrevVbat >= s.Vfloat {
				return DoneByRCP, "rcp"
			}
			return standbyVerdict(s, "rcp")
		case st.Has(types.DCShutdown):
			return Fatal, "shutdown"
		}
		return standbyVerdict(s, "standby")
	}

	if st.Has(types.DCActive) {
		switch {
		case st.Has(types.DCTempReg):
			return Fatal, "temp_reg"
		case vbat > DCVbatMin:
			return Ok, ""
		}
		return Fatal, "vbat_low"
	}

	if !st.Has(types.DCVinOK) {
		switch {
		case st.Has(types.DCCflyShort):
			return Fatal, "cfly_short"
		case st.Has(types.DCVoutUV):
			return Fatal, "vout_uv"
		case st.Has(types.DCVbatOV):
			return Fatal, "vbat_ov"
		case st.Has(types.DCVinOV):
			return Retryable, "vin_ov"
		case st.Has(types.DCVinUV):
			return Fatal, "vin_uv"
		}
		return Fatal, "vin_invalid"
	}

	switch {
	case st.Has(types.DCNTC):
		if s.Params.NTCProtect {
			return Fatal, "ntc"
		}
		return Retryable, "ntc"
	case st.Has(types.DCCtrlLimit | types.DCOCPFast | types.DCOCPAvg):
		switch {
		case st.Has(types.DCOCPFast):
			return Fatal, "ocp_fast"
		case st.Has(types.DCOCPAvg):
			return Retryable, "ocp_avg"
		}
		return Fatal, "ctrl_limit"
	case st.Has(types.DCTempReg):
		return Fatal, "temp_reg"
	case st.Has(types.DCTimer):
		return Fatal, "timer"
	case st.Has(types.DCCflyShort):
		return Fatal, "cfly_short"
	case st.Has(types.DCStandby):
		return Recheck, "standby"
	case st.Has(types.DCShutdown):
		return Fatal, "shutdown"
	}
	return standbyVerdict(s, "not_active")
}

// An unexplained inactive charger is retried only while entering
// active state.
func standbyVerdict(s *Session, reason string) (Outcome, string) {
	if s.State == CheckActive {
		return Retryable, reason
	}
	return Fatal, reason
}

// vbatOf returns the battery voltage the loop regulates against.
func vbatOf(s *Session, tel Telemetry) int32 {
	if s.Params.FGVfloat && tel.GaugeVBAT > 0 {
		return tel.GaugeVBAT
	}
	return tel.VBAT
}
