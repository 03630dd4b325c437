package exaconf

import "fmt"

// ConfigError is returned for invalid content and rejected operations.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "EXAConf: " + e.Msg
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IntegrityError is returned if the stored checksum doesn't match the
// content. It unwraps to a *ConfigError.
type IntegrityError struct {
	ConfigError
	Stored   string
	Computed string
}

func newIntegrityError(stored, computed string) *IntegrityError {
	return &IntegrityError{
		ConfigError: ConfigError{Msg: fmt.Sprintf(
			"integrity check failed: the stored checksum '%s' does not match the actual checksum '%s'; set the checksum to 'COMMIT' if you made intentional changes",
			stored, computed)},
		Stored:   stored,
		Computed: computed,
	}
}

func (e *IntegrityError) Unwrap() error { return &e.ConfigError }

// MigrationError is returned if the file was written by a newer version.
type MigrationError struct {
	Path          string
	FileVersion   string
	ModuleVersion string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("EXAConf: the version of '%s' is higher (%s) than the supported version (%s), please update your installation",
		e.Path, e.FileVersion, e.ModuleVersion)
}

// MergeConflictError is returned if a merge can't pick a reference or two
// copies disagree on the UUID of a node.
type MergeConflictError struct {
	NodeID int
	Local  string
	Other  string
	Msg    string
}

func (e *MergeConflictError) Error() string {
	if e.Msg != "" {
		return "EXAConf: merge conflict: " + e.Msg
	}
	return fmt.Sprintf("EXAConf: merge conflict: node %d has different UUIDs: '%s' (current) and '%s' (other)",
		e.NodeID, e.Local, e.Other)
}
