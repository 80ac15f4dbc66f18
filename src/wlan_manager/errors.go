package wlan_manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

// ErrorType classifies failures coming out of the external tools.
type ErrorType int

const (
	// ErrorTypeLaunch means the tool could not be started.
	ErrorTypeLaunch ErrorType = iota
	// ErrorTypeTool means the tool ran and reported failure.
	ErrorTypeTool
	// ErrorTypeParse means the tool output did not have the expected shape.
	ErrorTypeParse
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeLaunch:
		return "LaunchError"
	case ErrorTypeTool:
		return "ToolError"
	case ErrorTypeParse:
		return "ParseError"
	}
	return "UnknownError"
}

// WlanError represents a tool failure with the stage it happened in
type WlanError struct {
	Type    ErrorType
	Stage   string
	Message string
	Output  string
	Cause   error
}

// Error implements the error interface
func (e *WlanError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Stage, e.Type, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *WlanError) Unwrap() error {
	return e.Cause
}

var (
	ErrNoAccessPoint = errors.New("no access point for the requested band")
	ErrConnectFailed = errors.New("connection tool returned failure")
	ErrNoRadio       = errors.New("no wireless radio available")
	ErrWlanDisabled  = errors.New("wlan is administratively disabled")
)

// IsErrorType reports whether err carries a WlanError of type t.
func IsErrorType(err error, t ErrorType) bool {
	var we *WlanError
	return errors.As(err, &we) && we.Type == t
}

func launchError(stage string, err error) error {
	return &WlanError{Type: ErrorTypeLaunch, Stage: stage, Message: "tool could not be launched", Cause: err}
}

func toolError(stage string, res *commander.Result) error {
	return &WlanError{
		Type:    ErrorTypeTool,
		Stage:   stage,
		Message: fmt.Sprintf("%q exited with status %d", res.Command, res.ExitCode),
		Output:  res.Combined(),
	}
}

func parseError(stage, format string, args ...interface{}) error {
	return &WlanError{Type: ErrorTypeParse, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// run executes a tool and maps a launch failure to a WlanError for stage.
func run(ctx context.Context, executor commander.Executor, stage, name string, args ...string) (*commander.Result, error) {
	res, err := executor.Execute(ctx, name, args...)
	if err != nil {
		return nil, launchError(stage, err)
	}
	return res, nil
}

// runOK is run plus a ToolError for a non-zero exit.
func runOK(ctx context.Context, executor commander.Executor, stage, name string, args ...string) (*commander.Result, error) {
	res, err := run(ctx, executor, stage, name, args...)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, toolError(stage, res)
	}
	return res, nil
}
