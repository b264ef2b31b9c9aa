package call

import "fmt"

// Direction classifies who originated a call
type Direction int

const (
	// DirectionInbound is a call placed by the caller to the attendant
	DirectionInbound Direction = iota
	// DirectionOutbound is a call the attendant places to a target number
	DirectionOutbound
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}
