package cypher

import "fmt"

// SyntaxError reports a parse failure at an exact source position.
// Parsing is all-or-nothing: either a complete query or a SyntaxError.
type SyntaxError struct {
	Line     int
	Column   int
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: expected %s, found %q",
		e.Line, e.Column, e.Expected, e.Found)
}

// CompileError reports a semantic problem detected before execution, such
// as a UNION arity mismatch or an unknown function.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string {
	return "compile error: " + e.Message
}

func compileErrorf(format string, args ...any) *CompileError {
	return &CompileError{Message: fmt.Sprintf(format, args...)}
}

// RuntimeTypeError reports a value-level type mismatch during expression
// evaluation. It aborts the query; pending writes of the query are rolled
// back by the caller before the error is surfaced.
type RuntimeTypeError struct {
	Op     string
	Detail string
}

func (e *RuntimeTypeError) Error() string {
	return fmt.Sprintf("type error in %s: %s", e.Op, e.Detail)
}

func typeErrorf(op, format string, args ...any) *RuntimeTypeError {
	return &RuntimeTypeError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
