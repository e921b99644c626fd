// Package commands holds the validated inputs of the write operations.
// HTTP handlers and websocket sessions both build them, so the rules live in
// one place.
package commands

type Command interface {
	CommandType() string
	Validate() error
}
