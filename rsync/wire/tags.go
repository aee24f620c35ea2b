package wire

// Message tag kinds multiplexed onto the buffered phase of the stream.
const (
	MsgData      = 0
	MsgErrorXfer = 1
	MsgInfo      = 2
	MsgError     = 3
	MsgWarning   = 4
	MsgIOError   = 22
	MsgNoop      = 42
	MsgSuccess   = 100
	MsgDeleted   = 101
	MsgNoSend    = 102

	msgBase = 7
)

// IndexDone terminates an index stream.
const IndexDone = 0

// StallTimeout is the no-progress watchdog, in seconds.
const StallTimeout = 600
