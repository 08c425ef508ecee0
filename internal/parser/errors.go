package parser

import "fmt"

// MalformedLineError reports one structurally invalid CODA line. The
// importing operator gets the exact line number and raw content so the
// file can be fixed or taken up with the bank.
type MalformedLineError struct {
	LineNumber int
	Raw        string
	Reason     string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed CODA line %d: %s", e.LineNumber, e.Reason)
}

// InvalidFileFormatError means the file as a whole cannot be trusted:
// missing header or trailer, or records in an impossible order. The
// whole import is rejected.
type InvalidFileFormatError struct {
	Reason string
}

func (e *InvalidFileFormatError) Error() string {
	return fmt.Sprintf("invalid CODA file: %s", e.Reason)
}
