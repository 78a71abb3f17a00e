/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suparena/repository/processor"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "openapi.yaml")
	out := filepath.Join(dir, "registrations_gen.go")

	spec := `openapi: 3.0.3
info: {title: Clubs, version: "1"}
paths: {}
components:
  schemas:
    Club:
      type: object
      x-entity-key: ID
      x-dynamodb-indexmap:
        PK: "CLUB#{ID}"
        SK: "CLUB#{ID}"
`
	if err := os.WriteFile(in, []byte(spec), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := run(in, out, processor.Options{Package: "clubs"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	src, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(src), "package clubs") || !strings.Contains(string(src), `registry.RegisterKeyField[Club]("ID")`) {
		t.Fatalf("unexpected output:\n%s", src)
	}

	if err := run(filepath.Join(dir, "missing.yaml"), out, processor.Options{Package: "clubs"}); err == nil {
		t.Fatal("Expected error for missing input")
	}
}
