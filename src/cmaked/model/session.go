package model

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
)

// Session is the stored form of one inbound client connection.
type Session struct {
	UUID       uuid.UUID
	Conn       *jsonrpc2.Conn
	Subscribed bool
}
