package provider

// Status is the transport connection status forwarded to callers
// (spec.md §4.4: "disconnected, connecting, connected, error").
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)
