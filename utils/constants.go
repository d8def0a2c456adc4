package utils

import (
	"time"
)

// Request-scoped context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// OperatorTokenTTL is the default lifetime of write-route operator tokens
const OperatorTokenTTL = 24 * time.Hour

// Character registry constants
const (
	// CharacterIDCounter is the name of the counter that mints character ids
	CharacterIDCounter = "characterId"

	DefaultCharacterHealth int64 = 500
	DefaultCharacterPower  int64 = 100

	MaxCharacterNameLength = 255

	// ExportSheetName is the worksheet used by the spreadsheet export
	ExportSheetName = "Characters"
)
