package sandbox

import (
	"fmt"
	"strings"

	"github.com/abhisek/gatekeep/internal/questions"
)

// Toolchain describes how one language is run: the source is written to
// File in the working directory and Run is executed by sh with the
// problem input on stdin. Compiler diagnostics must go to stderr.
type Toolchain struct {
	Image string   `yaml:"image" json:"image"`
	File  string   `yaml:"file" json:"file"`
	Run   string   `yaml:"run" json:"run"`
	Env   []string `yaml:"env,omitempty" json:"env,omitempty"`
}

// DefaultToolchains returns the toolchain of every supported language.
func DefaultToolchains() map[string]Toolchain {
	return map[string]Toolchain{
		questions.LangPython: {
			Image: "python:3.12-alpine",
			File:  "main.py",
			Run:   "python3 main.py",
		},
		questions.LangJavaScript: {
			Image: "node:20-alpine",
			File:  "main.js",
			Run:   "node main.js",
		},
		questions.LangJava: {
			Image: "eclipse-temurin:21-jdk-alpine",
			File:  "Main.java",
			Run:   "java Main.java",
		},
		questions.LangCPP: {
			Image: "gcc:13",
			File:  "main.cpp",
			Run:   "g++ -O2 -std=c++17 -o main main.cpp && ./main",
		},
		questions.LangCSharp: {
			Image: "mono:6.12",
			File:  "main.cs",
			Run:   "mcs -out:main.exe main.cs >&2 && mono main.exe",
		},
		questions.LangGo: {
			Image: "golang:1.22-alpine",
			File:  "main.go",
			Run:   "go run main.go",
			Env:   []string{"GOCACHE=/tmp/.cache/go-build", "GOPATH=/tmp/go", "CGO_ENABLED=0"},
		},
	}
}

// script writes the source from $GATEKEEP_SOURCE and pipes $GATEKEEP_STDIN
// into the run command.
func (t Toolchain) script() string {
	return fmt.Sprintf(`printf '%%s' "$GATEKEEP_SOURCE" > %s && printf '%%s' "$GATEKEEP_STDIN" | (%s)`, t.File, t.Run)
}

func resolve(toolchains map[string]Toolchain, language string) (string, Toolchain, error) {
	lang, ok := questions.NormalizeLanguage(language)
	if !ok {
		return "", Toolchain{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	tc, ok := toolchains[lang]
	if !ok || strings.TrimSpace(tc.Run) == "" {
		return "", Toolchain{}, fmt.Errorf("%w: no toolchain for %s", ErrUnsupportedLanguage, lang)
	}
	return lang, tc, nil
}
