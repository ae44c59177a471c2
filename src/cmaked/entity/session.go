package entity

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
)

type sessionKeyType string

// SessionContextKey carries the session UUID through a request context.
const SessionContextKey = sessionKeyType("session-uuid")

// Session is one inbound client connection to the daemon. A session that has
// subscribed receives driver notifications until it disconnects.
type Session struct {
	UUID       uuid.UUID
	Conn       *jsonrpc2.Conn
	Subscribed bool
}
