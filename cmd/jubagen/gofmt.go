package main

import (
	"bytes"
	"go/format"
	"go/parser"
	"go/token"
)

const fakePkgClause = "package xxxxxxxx\n"

// gofmt formats generated source. Snippets without a package clause are
// formatted too.
func gofmt(in []byte) ([]byte, error) {
	// Contains 'package xxx' or not?
	input := in
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "", in, parser.PackageClauseOnly)
	hasPkgClause := err == nil

	// Add a fake package clause if missing.
	if !hasPkgClause {
		input = make([]byte, 0, len(fakePkgClause)+len(in))
		input = append(input, fakePkgClause...)
		input = append(input, in...)
	}

	// Format.
	output, err := format.Source(input)
	if err != nil {
		return nil, err
	}

	// Trim the fake package clause if any.
	if !hasPkgClause {
		return bytes.TrimLeft(output[len(fakePkgClause):], "\n"), nil
	}
	return output, nil
}
