package bscript

// ControlState is the decision record of a single request. The script writes it through the control operations and
// the pipeline reads it every time the script suspends. It is owned by its [Request] and never shared.
type ControlState struct {
	headersSent bool
	exited      bool
	exitCode    Code
	execURI     string
	execArgs    string
	failure     error
}

// HeadersSent reports whether the response headers are committed.
func (s *ControlState) HeadersSent() bool { return s.headersSent }

// MarkHeadersSent records that the response headers are committed. There is no way back.
func (s *ControlState) MarkHeadersSent() { s.headersSent = true }

// Exited reports whether a terminal decision (exit or redirect) was recorded.
func (s *ControlState) Exited() bool { return s.exited }

// ExitCode returns the code of the terminal decision. It is only meaningful when [ControlState.Exited] is true.
func (s *ControlState) ExitCode() Code { return s.exitCode }

// Exec returns the internal redirect target, ok is false if the script did not ask for one.
func (s *ControlState) Exec() (uri, args string, ok bool) {
	return s.execURI, s.execArgs, s.execURI != ""
}

// Failure returns the error that failed the request outside of the script's control, if any.
func (s *ControlState) Failure() error { return s.failure }

// Decided reports whether the pipeline has something to act on: a terminal decision, an internal redirect or a
// failure. A suspension without a decision is resumed.
func (s *ControlState) Decided() bool {
	return s.exited || s.execURI != "" || s.failure != nil
}

func (s *ControlState) recordExit(code Code) {
	s.exitCode, s.exited = code, true
}

func (s *ControlState) recordExec(uri, args string) {
	s.execURI, s.execArgs = uri, args
}

func (s *ControlState) recordFailure(err error) {
	s.headersSent = true
	s.failure = err
}
