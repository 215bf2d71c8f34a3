package tableinstance

import "github.com/lox/plo-core/internal/protocol"

// ConnectionHandle is the opaque transport handle a TableInstance publishes
// events through. Spec §9's re-architecture note ("socket objects stored
// inside seat records -> opaque ConnectionHandle values") means this core
// never touches a net.Conn or websocket.Conn directly; the transport layer
// (server.Connection, grounded on the teacher's internal/server/connection.go)
// implements this interface and owns socket lifetime and reconnect routing.
type ConnectionHandle interface {
	// Identity is the opaque player identity this connection authenticated
	// as.
	Identity() string
	// Send delivers one event. A non-nil error means the connection is
	// closed; per spec §7 category 3 the table logs it and drops this
	// handle from its connection set rather than failing the task.
	Send(*protocol.Envelope) error
	// Close releases the underlying transport resource.
	Close() error
}
