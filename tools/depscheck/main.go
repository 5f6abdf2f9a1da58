// Command depscheck enforces the consumer/logic boundary: packages that
// read the front buffers (the inspector, the audio backend, the viewers)
// must never import the scripted logic side.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

var consumerPrefixes = []string{
	"starhollow/engine/internal/net",
	"starhollow/engine/internal/audioout",
	"starhollow/engine/cmd/spectate",
}

const forbiddenImport = "starhollow/engine/internal/script"

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}

		if !isConsumer(pkg.ImportPath) {
			continue
		}
		for _, imp := range pkg.Imports {
			if strings.HasPrefix(imp, forbiddenImport) {
				violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func isConsumer(importPath string) bool {
	for _, prefix := range consumerPrefixes {
		if strings.HasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}
