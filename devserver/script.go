// Package devserver is a scriptable stand-in for the agent backend. It plays
// a scripted event sequence over the SSE wire protocol so the rest of the
// system can be developed and demoed without a live agent.
package devserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Step is one scripted frame: an optional pre-delay and the event payload to
// emit.
type Step struct {
	Delay   time.Duration
	Payload json.RawMessage
}

// Script is an ordered event sequence for playback.
type Script struct {
	Steps []Step
}

// LoadScript reads a script file. ".jsonl" files hold one JSON event per
// line; everything else is parsed as YAML.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if filepath.Ext(path) == ".jsonl" {
		return ParseJSONL(data)
	}
	return ParseYAML(data)
}

// ParseJSONL parses a script with one JSON event per line. Blank lines and
// "#" comment lines are skipped.
func ParseJSONL(data []byte) (*Script, error) {
	var script Script
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("script line %d: invalid JSON", line)
		}
		script.Steps = append(script.Steps, Step{
			Payload: append(json.RawMessage(nil), text...),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan script: %w", err)
	}
	return &script, nil
}

type yamlScript struct {
	Steps []struct {
		Delay string                 `yaml:"delay"`
		Event map[string]interface{} `yaml:"event"`
	} `yaml:"steps"`
}

// ParseYAML parses a script of the form:
//
//	steps:
//	  - delay: 100ms
//	    event: {type: text, content: "Hello"}
func ParseYAML(data []byte) (*Script, error) {
	var file yamlScript
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	script := &Script{Steps: make([]Step, 0, len(file.Steps))}
	for i, raw := range file.Steps {
		var step Step
		if raw.Delay != "" {
			d, err := time.ParseDuration(raw.Delay)
			if err != nil {
				return nil, fmt.Errorf("script step %d: bad delay: %w", i+1, err)
			}
			step.Delay = d
		}
		if raw.Event == nil {
			return nil, fmt.Errorf("script step %d: missing event", i+1)
		}
		payload, err := json.Marshal(raw.Event)
		if err != nil {
			return nil, fmt.Errorf("script step %d: encode event: %w", i+1, err)
		}
		step.Payload = payload
		script.Steps = append(script.Steps, step)
	}
	return script, nil
}
