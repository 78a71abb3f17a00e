/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/suparena/repository"
	"github.com/suparena/repository/processor"
)

var (
	versionFlag = flag.Bool("version", false, "Show version information")
	vFlag       = flag.Bool("v", false, "Show version information (short)")
	inFlag      = flag.String("in", "", "OpenAPI specification to read (YAML or JSON)")
	outFlag     = flag.String("out", "", "Go file to write (defaults to stdout)")
	pkgFlag     = flag.String("package", "models", "Package name of the generated file")
	importFlag  = flag.String("registry", processor.DefaultRegistryImport, "Import path of the registry package")
)

func main() {
	flag.Parse()

	if *versionFlag || *vFlag {
		info := repository.GetVersionInfo()
		fmt.Printf("indexmap version %s\n", info.Version)
		fmt.Printf("Git commit: %s\n", info.GitCommit)
		fmt.Printf("Build date: %s\n", info.BuildDate)
		fmt.Printf("Go version: %s\n", info.GoVersion)
		os.Exit(0)
	}

	log := logrus.WithField("subsystem", "indexmap")
	if err := run(*inFlag, *outFlag, processor.Options{Package: *pkgFlag, RegistryImport: *importFlag}); err != nil {
		log.WithError(err).Error("code generation failed")
		os.Exit(1)
	}
	if *outFlag != "" {
		log.WithFields(logrus.Fields{"in": *inFlag, "out": *outFlag}).Info("registrations generated")
	}
}

func run(in, out string, opts processor.Options) error {
	if in == "" {
		flag.Usage()
		return fmt.Errorf("-in is required")
	}

	spec, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}

	src, err := processor.Generate(spec, opts)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(src); err != nil {
		return fmt.Errorf("failed to write generated code: %w", err)
	}
	return nil
}
