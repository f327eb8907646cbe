package cnst

import "errors"

var (
	// ErrMissingRoomID is returned when a join message has no roomId
	ErrMissingRoomID = errors.New("join message missing roomId")
	// ErrBusClosed is returned when publishing on a closed bus
	ErrBusClosed = errors.New("message bus is closed")
	// ErrUnsupportedBusType is returned for an unknown bus.type config value
	ErrUnsupportedBusType = errors.New("unsupported bus type")
)
