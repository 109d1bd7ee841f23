// Package scpi holds the wire-level vocabulary of the laser driver board:
// reply parsing and the static error/status catalogues from the vendor
// command reference.
package scpi

// Class partitions catalogue codes by origin.
type Class int

const (
	// ClassNone is code 0: the device reported no error.
	ClassNone Class = iota
	// ClassHardware covers onboard fault codes (>= 3000): voltage,
	// temperature, flash and POST conditions raised by the board itself.
	ClassHardware
	// ClassCommunication covers negative codes: the board rejected the
	// command syntax or a parameter.
	ClassCommunication
	// ClassUnknown is any code outside the catalogue.
	ClassUnknown
)

// CodeTransportFault is a synthetic code used when the serial link itself
// fails (open/timeout/IO) and no device-reported code exists. It sits in
// the hardware range so callers branch on it like any other fault.
const CodeTransportFault = 3099

// UnidentifiedError is the fallback description for codes the catalogue
// does not know.
const UnidentifiedError = "UNIDENTIFIED_ERROR"

// errorCatalogue is the exhaustive code table from the vendor reference.
// It is deliberately a table, not a computed function: diagnosability
// requires every known code to resolve to its documented name.
var errorCatalogue = map[int]string{
	0:    "NO_ERROR",
	3011: "HOUSEKEEPING",
	3012: "FLASH_INITIALIZATION_FAILED",
	3013: "FLASH_HOUSEKEEPING_FAILED",
	3014: "LOW_VOLTAGE_EVENT",
	3015: "BAD_VOLTAGE_3V3",
	3016: "BAD_VOLTAGE_VIN",
	3017: "BAD_VOLTAGE_VTEC",
	3018: "HIGH_INPUT_CURRENT",
	3019: "TEC_UPDT_ON_BRD_STATE_BAD",
	3020: "TEC_UPDT_ON_TEMP_LONG_BAD",
	3021: "TEC_UPDT_ON_TEMP_OUT_SETPT",
	3022: "TEC_UPDT_ON_TEMP_OUT_RANGE",
	3097: "FAILED_INITIAL_POST",
	3098: "FLASH_PARAMS_REINITIALIZED",
	3099: UnidentifiedError,

	-102: "Syntax error",
	-103: "Invalid separator",
	-108: "Parameter not allowed",
	-109: "Missing parameter",
	-113: "Undefined header",
	-131: "Invalid suffix",
	-138: "Suffix not allowed",
	-200: "Execution error",
	-224: "Illegal parameter value",
}

// boardStatus maps the first field of a Status? reply to its meaning.
var boardStatus = map[int]string{
	0: "unknown state",
	1: "board passed POST",
	2: "board failed POST",
	3: "board in normal state",
	4: "board in fault state",
	5: "board in boot load state",
	6: "board not attached",
}

// Describe returns the catalogue description for code, or
// UnidentifiedError for codes outside the catalogue. It never fails.
func Describe(code int) string {
	if desc, ok := errorCatalogue[code]; ok {
		return desc
	}
	return UnidentifiedError
}

// ClassOf classifies a code: 0 is none, >= 3000 is a board fault,
// negative is a communication/syntax rejection.
func ClassOf(code int) Class {
	switch {
	case code == 0:
		return ClassNone
	case code >= 3000:
		return ClassHardware
	case code < 0:
		return ClassCommunication
	default:
		return ClassUnknown
	}
}

// StatusText returns the human-readable board state for a Status? code.
func StatusText(code int) string {
	if s, ok := boardStatus[code]; ok {
		return s
	}
	return boardStatus[0]
}
