package config

// Embedded configuration, keyed by device ID (the value placed in ctx
// under CtxDeviceKey). Each top-level section is published on
// config/<section>.

const cfgSim = `
heartbeat:
  interval: 5s
dc:
  iin_cfg_uA: 3000000
  vfloat_uV: 4400000
  max_vfloat_uV: 4450000
  ta_max_vol_uV: 9800000
  cv_polling: 2s
`

const cfgBoard = `
heartbeat:
  interval: 30s
dc:
  iin_cfg_uA: 2500000
  vfloat_uV: 4350000
  ntc_protect: true
`

var embeddedConfigs = map[string][]byte{
	"sim":   []byte(cfgSim),
	"board": []byte(cfgBoard),
}
