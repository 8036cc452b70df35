package repair

import (
	"context"
	"fmt"
	"strings"
)

// AttrType is the NetCDF type of an attribute written by the toolchain.
type AttrType byte

const (
	TypeChar   AttrType = 'c'
	TypeDouble AttrType = 'd'
)

// AttrEdit sets one attribute on one variable.
type AttrEdit struct {
	Var   string
	Name  string
	Type  AttrType
	Value string
}

// spec renders the edit in ncatted's -a syntax: name,var,mode,type,value.
// Mode "c" creates the attribute only when it does not already exist.
func (e AttrEdit) spec() string {
	return fmt.Sprintf("%s,%s,c,%c,%s", e.Name, e.Var, e.Type, e.Value)
}

// Toolchain edits grid files out of place. Every call reads in and writes a
// new file at out; implementations must never modify in.
type Toolchain interface {
	// AddVariable defines a new variable computed by expr, e.g. name "crs"
	// with expr "0" adds a scalar zero-valued variable.
	AddVariable(ctx context.Context, in, out, name, expr string) error
	// SetAttributes applies every edit in one invocation.
	SetAttributes(ctx context.Context, in, out string, edits []AttrEdit) error
}

// Error is returned when a toolchain invocation fails.
type Error struct {
	Op     string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, msg)
}

func (e *Error) Unwrap() error { return e.Err }
