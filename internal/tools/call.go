// Package tools defines the tool-call data model, the execution result
// variants, and the built-in tool set (file I/O, shell with background
// sessions, glob, plan, delegate).
package tools

import (
	"fmt"
	"strings"
)

// Param is a single named argument of a tool call. Order matters: the
// parser preserves the order the model wrote the arguments in, and the
// repeat-detection signature depends on it.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of named arguments.
type Params []Param

// Get returns the value for key and whether it was present.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Value returns the value for key or "" when absent.
func (p Params) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Map returns the params as a plain map, dropping order. Later duplicates
// win, matching last-write semantics elsewhere.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, param := range p {
		m[param.Key] = param.Value
	}
	return m
}

// String renders the params as `k="v" k2="v2"` in order.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, param := range p {
		parts = append(parts, fmt.Sprintf("%s=%q", param.Key, param.Value))
	}
	return strings.Join(parts, " ")
}

// Call is one structured tool invocation extracted from model output.
type Call struct {
	Name   string
	Params Params
}

// String renders the call in the same shape the model writes it.
func (c Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Params)
}
