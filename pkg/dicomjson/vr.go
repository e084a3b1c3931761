package dicomjson

// vrClass groups VRs that share a JSON value encoding
type vrClass int

const (
	classUnknown vrClass = iota
	classText
	classFloat
	classBinary
	classPersonName
	classInteger
	classSequence
)

var vrClasses = map[string]vrClass{
	"AE": classText,
	"AS": classText,
	"AT": classText,
	"CS": classText,
	"DA": classText,
	"DS": classText,
	"DT": classText,
	"IS": classText,
	"LO": classText,
	"LT": classText,
	"SH": classText,
	"ST": classText,
	"SV": classText,
	"TM": classText,
	"UC": classText,
	"UI": classText,
	"UR": classText,
	"UT": classText,
	"UV": classText,

	"FL": classFloat,
	"FD": classFloat,

	"OB": classBinary,
	"OD": classBinary,
	"OF": classBinary,
	"OL": classBinary,
	"OV": classBinary,
	"OW": classBinary,
	"UN": classBinary,

	"PN": classPersonName,

	"SL": classInteger,
	"SS": classInteger,
	"UL": classInteger,
	"US": classInteger,

	"SQ": classSequence,
}

func classify(vr string) vrClass {
	return vrClasses[vr]
}

// integerRange returns the inclusive bounds of an integer VR.
func integerRange(vr string) (int64, int64) {
	switch vr {
	case "US":
		return 0, 1<<16 - 1
	case "SS":
		return -1 << 15, 1<<15 - 1
	case "UL":
		return 0, 1<<32 - 1
	default: // SL
		return -1 << 31, 1<<31 - 1
	}
}
