package remote

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "crucible/pkg/errors"
)

// The provider's response schema drifts between versions; fields are looked
// up by a priority list of known names, including one level of nesting
// ("run.stdout" style).
var (
	stdoutFields   = []string{"stdout", "output", "run.stdout", "run.output"}
	stderrFields   = []string{"stderr", "error", "compile_output", "run.stderr"}
	exitCodeFields = []string{"exitCode", "exit_code", "code", "status", "run.code", "run.exitCode"}
	timeoutFields  = []string{"timedOut", "timed_out", "isTimeout", "run.timedOut"}
)

// parseResult normalizes a loosely-typed provider payload. An empty or
// field-free payload is an error, never a silent success.
func parseResult(payload []byte) (*Result, error) {
	if len(payload) == 0 {
		return nil, apperrors.New(apperrors.ProviderUnavailable).WithMessage("provider returned an empty response")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ProviderUnavailable, "provider returned malformed JSON")
	}
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.ProviderUnavailable).WithMessage("provider returned an empty object")
	}

	result := &Result{}
	stdout, stdoutOK := lookupString(raw, stdoutFields)
	stderr, stderrOK := lookupString(raw, stderrFields)
	exitCode, exitOK := lookupInt(raw, exitCodeFields)
	timedOut, _ := lookupBool(raw, timeoutFields)

	if !stdoutOK && !stderrOK && !exitOK {
		return nil, apperrors.New(apperrors.ProviderUnavailable).WithMessage("provider response carried no recognizable output fields")
	}

	result.Stdout = stdout
	result.Stderr = stderr
	result.ExitCode = exitCode
	result.TimedOut = timedOut
	return result, nil
}

func lookup(raw map[string]interface{}, field string) (interface{}, bool) {
	if dot := strings.IndexByte(field, '.'); dot >= 0 {
		parent, child := field[:dot], field[dot+1:]
		nested, ok := raw[parent].(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := nested[child]
		return v, ok
	}
	v, ok := raw[field]
	return v, ok
}

func lookupString(raw map[string]interface{}, fields []string) (string, bool) {
	for _, f := range fields {
		if v, ok := lookup(raw, f); ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func lookupInt(raw map[string]interface{}, fields []string) (int, bool) {
	for _, f := range fields {
		v, ok := lookup(raw, f)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func lookupBool(raw map[string]interface{}, fields []string) (bool, bool) {
	for _, f := range fields {
		v, ok := lookup(raw, f)
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, true
			}
		}
	}
	return false, false
}
