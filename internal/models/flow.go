package models

import "fmt"

// FlowType names the conversation program that owns a session
type FlowType string

const (
	FlowEightQuestion FlowType = "eight_question"
	FlowHighTicket    FlowType = "high_ticket"
	FlowSupport       FlowType = "support"
	FlowHuman         FlowType = "human"
)

// AllFlows lists every flow type in a stable order
var AllFlows = []FlowType{FlowEightQuestion, FlowHighTicket, FlowSupport, FlowHuman}

// Valid reports whether f is a known flow type
func (f FlowType) Valid() bool {
	switch f {
	case FlowEightQuestion, FlowHighTicket, FlowSupport, FlowHuman:
		return true
	}
	return false
}

// ParseFlowType converts a raw string into a FlowType
func ParseFlowType(s string) (FlowType, error) {
	f := FlowType(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown flow type %q", s)
	}
	return f, nil
}

// Direction of a transcript record
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)
