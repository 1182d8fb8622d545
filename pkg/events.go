package vault

// Agent Vault event types.

// bus.Send(TX_SUBMITTED, withdrawal)
// bus.Send(REG_REGISTERED, entry)

// Interface for any event
type EventType interface {
	Type() string
}

// slice of all msg types for config funcs lookup
var EVENT_TYPES []EventType = []EventType{EVENT_ALL("ALL"),
	EVENT_SYS("SYS"),
	EVENT_REG("REG"),
	EVENT_TX("TX")}

// Special category, do not use directly, represents *
type EVENT_ALL string

func (e EVENT_ALL) Type() string {
	return "ALL"
}

// System Events
type EVENT_SYS string

func (e EVENT_SYS) Type() string {
	return "SYS"
}

const (
	SYS_STARTUP EVENT_SYS = "STARTUP"
	SYS_ERR     EVENT_SYS = "ERR"
	SYS_MSG     EVENT_SYS = "MSG"
)

// Contract Registry Events
type EVENT_REG string

func (e EVENT_REG) Type() string {
	return "REG"
}

const (
	REG_REGISTERED EVENT_REG = "REGISTERED"
	REG_REJECTED   EVENT_REG = "REJECTED"
	REG_STATUS     EVENT_REG = "STATUS"
	REG_STUCK      EVENT_REG = "STUCK"
)

// Withdrawal / Transaction Events
type EVENT_TX string

func (e EVENT_TX) Type() string {
	return "TX"
}

const (
	TX_ASSEMBLED EVENT_TX = "ASSEMBLED"
	TX_SIGNED    EVENT_TX = "SIGNED"
	TX_SUBMITTED EVENT_TX = "SUBMITTED"
	TX_CONFIRMED EVENT_TX = "CONFIRMED"
	TX_PENDING   EVENT_TX = "PENDING"
	TX_REJECTED  EVENT_TX = "REJECTED"
	TX_CANCELLED EVENT_TX = "CANCELLED"
)
