// Package main provides the speech plugin. It reads a request on stdin and
// speaks its text with the platform's text-to-speech command.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event,omitempty"`
	Sign   string          `json:"sign,omitempty"`
	Text   string          `json:"text"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Params tunes a single utterance.
type Params struct {
	Voice string `json:"voice,omitempty"`
	Rate  int    `json:"rate,omitempty"`
}

var errNoSynthesizer = errors.New("no text-to-speech command found")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "speak" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeSuccessResponse()
		return
	}

	var params Params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	if err := speak(text, params); err != nil {
		writeErrorResponse(fmt.Sprintf("speak failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// speak blocks until the utterance has finished.
func speak(text string, p Params) error {
	name, args, err := command(runtime.GOOS, text, p)
	if err != nil {
		return err
	}
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// command picks the synthesizer for goos: say on macOS, otherwise the
// first of espeak-ng, espeak or spd-say found on PATH.
func command(goos, text string, p Params) (string, []string, error) {
	if goos == "darwin" {
		args := []string{}
		if p.Voice != "" {
			args = append(args, "-v", p.Voice)
		}
		if p.Rate > 0 {
			args = append(args, "-r", fmt.Sprint(p.Rate))
		}
		return "say", append(args, text), nil
	}

	for _, name := range []string{"espeak-ng", "espeak"} {
		if _, err := exec.LookPath(name); err == nil {
			args := []string{}
			if p.Voice != "" {
				args = append(args, "-v", p.Voice)
			}
			if p.Rate > 0 {
				args = append(args, "-s", fmt.Sprint(p.Rate))
			}
			return name, append(args, text), nil
		}
	}
	if _, err := exec.LookPath("spd-say"); err == nil {
		return "spd-say", []string{"--wait", text}, nil
	}
	return "", nil, errNoSynthesizer
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
