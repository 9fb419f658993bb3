// Package pca9468 provides constants for register addresses and bitfields used
// in the operation of the PCA9468 switched-capacitor direct charger.
package pca9468

const (
	// 7-bit I2C address (101_0111b).
	AddressDefault = 0x57

	// DEVICE_INFO value: DEV_REV 1, DEV_ID 8.
	DeviceID = 0x18

	// --- Register sub-addresses (8-bit registers) ---

	regDeviceInfo = 0x00 // R

	// Interrupts and status
	regInt1    = 0x01 // R/Clear
	regInt1Msk = 0x02 // R/W
	regInt1Sts = 0x03 // R
	regStsA    = 0x04 // R
	regStsB    = 0x05 // R
	regStsC    = 0x06 // R
	regStsD    = 0x07 // R

	// ADC results (10-bit fields packed across consecutive registers)
	regStsADC1 = 0x08 // IIN[7:0]
	regStsADC2 = 0x09 // IOUT[5:0] IIN[9:8]
	regStsADC3 = 0x0A // VIN[3:0] IOUT[9:6]
	regStsADC4 = 0x0B // VOUT[1:0] VIN[9:4]
	regStsADC5 = 0x0C // VOUT[9:2]
	regStsADC6 = 0x0D // VBAT[7:0]
	regStsADC7 = 0x0E // DIETEMP[5:0] VBAT[9:8]
	regStsADC8 = 0x0F // NTC[3:0] DIETEMP[9:6]
	regStsADC9 = 0x10 // NTC[9:4]

	// Configuration
	regIchgCtrl    = 0x20 // R/W
	regIinCtrl     = 0x21 // R/W
	regStartCtrl   = 0x22 // R/W
	regADCCtrl     = 0x23 // R/W
	regADCCfg      = 0x24 // R/W
	regTempCtrl    = 0x25 // R/W
	regPwrCollapse = 0x26 // R/W
	regVFloat      = 0x27 // R/W
	regSafetyCtrl  = 0x28 // R/W
	regNTCTh1      = 0x29 // R/W
	regNTCTh2      = 0x2A // R/W
)

// --- IIN_CTRL (0x21) ---
const (
	iinLimitIncrementEn = 1 << 7
	iinCfgMask          = 0x3F

	iinCfgStep_uA = 100_000
	iinCfgMax_uA  = 5_000_000
	iinCfgMaxCode = 0x32
)

// --- V_FLOAT (0x27): 3.725 V + code*5 mV ---
const (
	vfloatMin_uV  = 3_725_000
	vfloatMax_uV  = 5_000_000
	vfloatStep_uV = 5_000
)

// --- ADC_CTRL (0x23) ---
const (
	adcForceModeMask  = 0xC0
	adcForceModeShift = 6
	adcModeAuto       = 0
	adcModeNormal     = 1
)

// --- ADC_CFG (0x24): channel enables ---
const (
	adcCh7En = 1 << 7 // NTC
	adcCh6En = 1 << 6 // DIETEMP
	adcCh5En = 1 << 5 // VBAT
	adcCh4En = 1 << 4 // VOUT
	adcCh3En = 1 << 3 // VIN
	adcCh2En = 1 << 2 // IOUT
	adcCh1En = 1 << 1 // IIN
	adcChAll = adcCh7En | adcCh6En | adcCh5En | adcCh4En | adcCh3En | adcCh2En | adcCh1En
)

// --- TEMP_CTRL (0x25) ---
const (
	tempRegMask     = 0x30 // die regulation threshold
	tempRegShift    = 4
	tempReg120C     = 0x3
	tempRegEn       = 1 << 1
	ntcProtectionEn = 1 << 0
)

// --- SAFETY_CTRL (0x28) ---
const (
	watchdogEn       = 1 << 7
	watchdogCfgMask  = 0x60
	watchdogCfgShift = 5
	ovDeltaMask      = 0x0C
	ovDeltaShift     = 2
)

// ---------------- Typed status banks ----------------

// INT1_STS (0x03)
type Int1Bits uint8

const (
	Int1VOK       Int1Bits = 1 << 7 // VIN inside its window
	Int1NTCTemp   Int1Bits = 1 << 6
	Int1ChgPhase  Int1Bits = 1 << 5
	Int1CtrlLimit Int1Bits = 1 << 3
	Int1TempReg   Int1Bits = 1 << 2
	Int1ADCDone   Int1Bits = 1 << 1
	Int1Timer     Int1Bits = 1 << 0
)

func (b Int1Bits) Has(f Int1Bits) bool { return b&f != 0 }

// STS_A (0x04)
type StsABits uint8

const (
	StsAIinLoop   StsABits = 1 << 7
	StsAChgLoop   StsABits = 1 << 6
	StsAVfltLoop  StsABits = 1 << 5
	StsACflyShort StsABits = 1 << 4
	StsAVoutUV    StsABits = 1 << 3
	StsAVbatOV    StsABits = 1 << 2
	StsAVinOV     StsABits = 1 << 1
	StsAVinUV     StsABits = 1 << 0
)

func (b StsABits) Has(f StsABits) bool { return b&f != 0 }

// STS_B (0x05)
type StsBBits uint8

const (
	StsBBattMiss    StsBBits = 1 << 7
	StsBOCPFast     StsBBits = 1 << 6
	StsBOCPAvg      StsBBits = 1 << 5
	StsBActive      StsBBits = 1 << 4
	StsBShutdown    StsBBits = 1 << 3
	StsBStandby     StsBBits = 1 << 2
	StsBChargeTimer StsBBits = 1 << 1
	StsBWatchdog    StsBBits = 1 << 0
)

func (b StsBBits) Has(f StsBBits) bool { return b&f != 0 }

// START_CTRL (0x22)
type StartCtrlBits uint8

const (
	StartSnsRes    StartCtrlBits = 1 << 7 // 0: 5 mOhm, 1: 10 mOhm
	StartEnCfg     StartCtrlBits = 1 << 6 // 0: EN active high, 1: active low
	StartStandbyEn StartCtrlBits = 1 << 5 // forced standby
	StartRevIinDet StartCtrlBits = 1 << 4 // reverse current detection
	StartFswMask   StartCtrlBits = 0x0F
)

func (b StartCtrlBits) Has(f StartCtrlBits) bool { return b&f != 0 }

// Fsw returns the switching-frequency code.
func (b StartCtrlBits) Fsw() uint8 { return uint8(b & StartFswMask) }

// OVDelta is the VIN over-voltage margin code in SAFETY_CTRL.
type OVDelta uint8

const (
	OVDelta10 OVDelta = iota
	OVDelta30
	OVDelta20
	OVDelta40
)

// Watchdog is the charger watchdog timeout code in SAFETY_CTRL.
type Watchdog uint8

const (
	Watchdog4s Watchdog = iota
	Watchdog8s
	Watchdog16s
	Watchdog40s
)
