package lang

import (
	"fmt"
	"strings"
)

// Language is a closed enum over the languages the pipeline can execute.
// Dispatch is by exhaustive switch over this type, so adding a language
// without filling in its configuration is a compile-time error.
type Language int

const (
	Python Language = iota
	JavaScript
	TypeScript
	Java
	C
	CPP
	Go
)

// All lists every supported language. Configuration lookups iterate this
// slice; the switch in configFor covers every member.
var All = []Language{Python, JavaScript, TypeScript, Java, C, CPP, Go}

// String returns the canonical wire name of the language.
func (l Language) String() string {
	switch l {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	case TypeScript:
		return "typescript"
	case Java:
		return "java"
	case C:
		return "c"
	case CPP:
		return "cpp"
	case Go:
		return "go"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Parse maps a wire name (plus common aliases) to a Language.
func Parse(name string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "python3", "py":
		return Python, nil
	case "javascript", "js", "node", "nodejs":
		return JavaScript, nil
	case "typescript", "ts":
		return TypeScript, nil
	case "java":
		return Java, nil
	case "c":
		return C, nil
	case "cpp", "c++", "cxx":
		return CPP, nil
	case "go", "golang":
		return Go, nil
	}
	return 0, fmt.Errorf("unsupported language %q", name)
}

// MustParse is Parse for static tables; it panics on unknown names.
func MustParse(name string) Language {
	l, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return l
}

// Config is the per-language execution table.
type Config struct {
	// SourceFile is the file name the submission is written to.
	SourceFile string

	// Interpreter is the primary local command used to run the source.
	// Empty for languages without a local toolchain.
	Interpreter string

	// InterpreterFallback is tried when Interpreter is not on PATH.
	InterpreterFallback string

	// RunArgs are the arguments passed before the source file path.
	RunArgs []string

	// Image is the container image used by the container backend.
	Image string

	// RemoteName is the identifier sent to the remote execution provider
	// for languages without a local toolchain.
	RemoteName string

	// CompileKeywords are stderr substrings that classify a failure as a
	// compilation error.
	CompileKeywords []string
}

// HasLocalRunner reports whether the language can run on the host or in a
// container without an external compilation provider.
func (c Config) HasLocalRunner() bool {
	return c.Interpreter != ""
}

// ConfigOf returns the execution table entry for a language.
func ConfigOf(l Language) Config {
	return configFor(l)
}

func configFor(l Language) Config {
	switch l {
	case Python:
		return Config{
			SourceFile:          "main.py",
			Interpreter:         "python3",
			InterpreterFallback: "python",
			Image:               "python:3.11-alpine",
			CompileKeywords:     []string{"SyntaxError", "IndentationError"},
		}
	case JavaScript:
		return Config{
			SourceFile:          "main.js",
			Interpreter:         "node",
			InterpreterFallback: "nodejs",
			Image:               "node:20-alpine",
			CompileKeywords:     []string{"SyntaxError"},
		}
	case TypeScript:
		return Config{
			SourceFile:          "main.ts",
			Interpreter:         "npx",
			InterpreterFallback: "",
			RunArgs:             []string{"--yes", "tsx"},
			Image:               "node:20-alpine",
			CompileKeywords:     []string{"SyntaxError", "error TS"},
		}
	case Java:
		return Config{
			SourceFile:      "Main.java",
			RemoteName:      "java",
			CompileKeywords: []string{"cannot find symbol", "error:", "class, interface, or enum expected"},
		}
	case C:
		return Config{
			SourceFile:      "main.c",
			RemoteName:      "c",
			CompileKeywords: []string{"error:", "undefined reference"},
		}
	case CPP:
		return Config{
			SourceFile:      "main.cpp",
			RemoteName:      "cpp",
			CompileKeywords: []string{"error:", "undefined reference"},
		}
	case Go:
		return Config{
			SourceFile:      "main.go",
			RemoteName:      "go",
			CompileKeywords: []string{"syntax error", "undefined:", "cannot use"},
		}
	}
	panic(fmt.Sprintf("no configuration for %v", l))
}
