package engine

import "fmt"

// Result is the code every engine call reports. ResultOK is never returned as
// an error; all other codes implement error directly.
type Result int

const (
	ResultOK Result = iota
	ResultInternal
	ResultInvalidParam
	ResultInvalidHandle
	ResultUninitialized
	ResultInitialized
	ResultFileNotFound
	ResultFileBad
	ResultFormat
	ResultBankRequired
	ResultOutputInit
	ResultOutputNoDrivers
	ResultOutputDriverCall
	ResultMemory
	ResultUnsupported
	ResultVersion
)

var resultStrings = map[Result]string{
	ResultOK:               "No errors.",
	ResultInternal:         "An error occurred inside the audio engine.",
	ResultInvalidParam:     "An invalid parameter was passed to this function.",
	ResultInvalidHandle:    "An invalid object handle was used.",
	ResultUninitialized:    "This command failed because System.Init was not called.",
	ResultInitialized:      "Cannot call this command after System.Init.",
	ResultFileNotFound:     "File not found.",
	ResultFileBad:          "Error loading file.",
	ResultFormat:           "Unsupported file or audio format.",
	ResultBankRequired:     "An instrument bank is required to render MIDI.",
	ResultOutputInit:       "Error initializing output device.",
	ResultOutputNoDrivers:  "The output device has no drivers installed.",
	ResultOutputDriverCall: "A call to a standard audio driver function failed.",
	ResultMemory:           "Not enough memory or resources.",
	ResultUnsupported:      "A command issued was not supported by this object.",
	ResultVersion:          "The version number of this library does not match the interface version.",
}

// String maps the code to a human-readable message.
func (r Result) String() string {
	if s, ok := resultStrings[r]; ok {
		return s
	}
	return fmt.Sprintf("Unknown error (%d).", int(r))
}

func (r Result) Error() string {
	return r.String()
}

// Kind classifies the code into one of the sentinel error categories.
func (r Result) Kind() error {
	switch r {
	case ResultOK:
		return nil
	case ResultFileNotFound, ResultBankRequired:
		return ErrAssetNotFound
	case ResultFormat, ResultFileBad:
		return ErrUnsupportedFormat
	case ResultOutputInit, ResultOutputNoDrivers, ResultOutputDriverCall:
		return ErrDeviceUnavailable
	case ResultMemory, ResultVersion:
		return ErrEngineUnavailable
	default:
		return ErrEngine
	}
}

// Is matches the sentinel category of the code, so a bare Result satisfies
// errors.Is the same way a CallError does.
func (r Result) Is(target error) bool {
	return target != nil && target == r.Kind()
}
