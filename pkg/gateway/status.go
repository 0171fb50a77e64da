package gateway

// StatusClass groups HTTP status codes by their first digit. It labels
// request metrics and log lines.
type StatusClass int

const (
	// StatusNone means no response was received
	StatusNone StatusClass = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

func (c StatusClass) String() string {
	switch c {
	case Status1xx:
		return "1xx"
	case Status2xx:
		return "2xx"
	case Status3xx:
		return "3xx"
	case Status4xx:
		return "4xx"
	case Status5xx:
		return "5xx"
	default:
		return "none"
	}
}

// StatusClassOf classifies an HTTP status code. Zero and out-of-range codes
// are StatusNone.
func StatusClassOf(code int) StatusClass {
	if code < 100 || code >= 600 {
		return StatusNone
	}
	return StatusClass(code / 100)
}
