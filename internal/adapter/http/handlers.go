// Package http implements the HTTP API of ChatPilot.
package http

import (
	"github.com/seralis/chatpilot/internal/adapter/ws"
	"github.com/seralis/chatpilot/internal/port/database"
	"github.com/seralis/chatpilot/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds the services the HTTP layer dispatches to.
type Handlers struct {
	Store   database.Store
	Turns   *service.TurnService
	History *service.HistoryService
	Welcome *service.WelcomeService
	Hub     *ws.Hub

	// MaxUploadBytes bounds Excel import uploads.
	MaxUploadBytes int64
	// TemplateRows is the number of validated data rows in generated
	// templates.
	TemplateRows int
}
