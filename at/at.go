package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcNewMsg  = "+CMTI:"
	UrcCall    = "RING"
	UrcPowerUp = "RDY"
)

// Command prefix used by every echoed command line.
const CommandPrefix = "AT"

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK, ERROR
	TypeURC                       // Asynchronous notifications
	TypeData                      // Intermediate command output (+CSQ: ...)
	TypeEcho                      // Command echo (ATE1)
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeEcho:
		return "echo"
	default:
		return "data"
	}
}
