// Package plugin discovers and runs external helper executables that react
// to session events, such as the speech plugin.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
	// Events lists the event kinds the plugin wants; empty means all.
	Events       []string        `json:"events,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event,omitempty"`
	Sign   string          `json:"sign,omitempty"`
	Text   string          `json:"text,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout as JSON.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the plugin declares action.
func (p *Plugin) Supports(action string) bool {
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Wants reports whether the plugin subscribes to events of the given kind.
func (p *Plugin) Wants(kind string) bool {
	if len(p.Manifest.Events) == 0 {
		return true
	}
	for _, k := range p.Manifest.Events {
		if k == kind {
			return true
		}
	}
	return false
}
