package ir

// Version constants for the stored exchange format and the binary.
const (
	// ExchangeVersion is the stored reply format version.
	ExchangeVersion = "1"

	// Version is the tether release version.
	Version = "0.1.0"
)
