package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Загрузка пакетов и файлов
	LoadInfo         Code = 1000
	LoadPackageError Code = 1001
	LoadFileError    Code = 1002
	LoadTypeError    Code = 1003

	// Форма вызова
	ShapeInfo        Code = 2000
	ShapeNotTemplate Code = 2001
	ShapeSpread      Code = 2002
	ShapeBatchFunc   Code = 2003

	// Разрешение wrap-функций
	WrapInfo               Code = 3000
	WrapNoCandidate        Code = 3001
	WrapAmbiguous          Code = 3002
	WrapMalformedCandidate Code = 3003

	// Синтез замены
	RewriteInfo           Code = 4000
	RewriteResultMismatch Code = 4001
	RewriteNoBackend      Code = 4002
	RewriteUnnameableType Code = 4003
	RewriteArity          Code = 4004
	RewriteOutputInvalid  Code = 4005
	RewriteApplied        Code = 4006

	IOInfo      Code = 5000
	IOWriteFile Code = 5001
)

var codeDescription = map[Code]string{
	UnknownCode:            "Unknown error",
	LoadInfo:               "Load information",
	LoadPackageError:       "Package failed to load",
	LoadFileError:          "Source file failed to load",
	LoadTypeError:          "Package has type errors",
	ShapeInfo:              "Call shape information",
	ShapeNotTemplate:       "Argument is not a literal or a concatenation",
	ShapeSpread:            "Spread arguments cannot be decomposed",
	ShapeBatchFunc:         "Batch argument is not a fragment function literal",
	WrapInfo:               "Wrap resolution information",
	WrapNoCandidate:        "No wrap function accepts the slot type",
	WrapAmbiguous:          "Several wrap functions accept the slot type",
	WrapMalformedCandidate: "Malformed wrap function",
	RewriteInfo:            "Rewrite information",
	RewriteResultMismatch:  "Backend result type differs from entry point result type",
	RewriteNoBackend:       "Interpolator has no backend entry point",
	RewriteUnnameableType:  "Type cannot be named at the call site",
	RewriteArity:           "Inconsistent template arity",
	RewriteOutputInvalid:   "Rewritten file does not parse",
	RewriteApplied:         "Call site rewritten",
	IOInfo:                 "I/O information",
	IOWriteFile:            "Failed to write output",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LOAD%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SHAPE%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("WRAP%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("RW%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
