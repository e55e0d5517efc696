// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// keygen generates typed paths from selector chains.
//
// To generate paths for a package, use
//
//	//go:generate go run github.com/bufbuild/keypath/internal/keygen paths.yaml
//
// The config file must contain an array of the Entry type defined in this
// package. Every chain is checked against the package's types, and the
// generated file, paths.go, declares one variable per entry, built with
// keypath.Of. Because the generated selector chains are ordinary Go code,
// editing a type so that a chain no longer exists breaks the build rather
// than producing a bad offset.
//
// Set KEYGEN_LOG=debug to log each generated path.
package main

import (
	"bytes"
	"debug/buildinfo"
	_ "embed"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/go/packages"
	"gopkg.in/yaml.v3"

	"github.com/bufbuild/keypath/layout"
)

const keypathImport = "github.com/bufbuild/keypath"

type Entry struct {
	Name string `yaml:"name"` // The name of the generated variable.
	From string `yaml:"from"` // The type the path starts at.
	Path string `yaml:"path"` // The selector chain, in layout.Split syntax.
	Docs string `yaml:"docs"` // Documentation for the variable.

	Expr string `yaml:"-"` // The chain as a Go selector expression.
	Type string `yaml:"-"` // The type the chain leads to.
}

type Input struct {
	Binary, Package, Config string
	Imports                 []string
	Entries                 []Entry
}

//go:embed keygen.go.tmpl
var tmplText string

// makeDocs converts a data into doc comments.
func makeDocs(data, indent string) string {
	if data == "" {
		return ""
	}

	var out strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		out.WriteString(indent)
		if line == "" {
			out.WriteString("//\n")
			continue
		}
		out.WriteString("// ")
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}

// resolve checks e's chain against pkg, filling in e.Expr and e.Type.
func resolve(pkg *types.Package, e *Entry, qualify types.Qualifier) error {
	if !token.IsIdentifier(e.Name) || e.Name == "_" {
		return fmt.Errorf("invalid variable name %q", e.Name)
	}

	obj, ok := pkg.Scope().Lookup(e.From).(*types.TypeName)
	if !ok {
		return fmt.Errorf("%s: no type %s in package %s", e.Name, e.From, pkg.Name())
	}
	ty := types.Unalias(obj.Type())
	if named, ok := ty.(*types.Named); ok && named.TypeParams().Len() > 0 {
		return fmt.Errorf("%s: %s is generic", e.Name, e.From)
	}

	steps, err := layout.Split(e.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}

	var expr strings.Builder
	for _, step := range steps {
		switch u := ty.Underlying().(type) {
		case *types.Struct:
			name := step
			if n, err := strconv.Atoi(step); err == nil {
				if n < 0 || n >= u.NumFields() {
					return fmt.Errorf("%s: %s has no field %d", e.Name, ty, n)
				}
				name = u.Field(n).Name()
			}

			field, _, indirect := types.LookupFieldOrMethod(ty, true, pkg, name)
			v, ok := field.(*types.Var)
			if !ok || !v.IsField() || name == "_" {
				return fmt.Errorf("%s: %s has no field %s", e.Name, ty, name)
			}
			if indirect {
				return fmt.Errorf("%s: %s.%s is promoted through an embedded pointer", e.Name, ty, name)
			}

			expr.WriteString(".")
			expr.WriteString(name)
			ty = v.Type()

		case *types.Array:
			n, err := strconv.ParseInt(step, 10, 64)
			if err != nil || n < 0 || n >= u.Len() {
				return fmt.Errorf("%s: index %s out of range for %s", e.Name, step, ty)
			}
			fmt.Fprintf(&expr, "[%d]", n)
			ty = u.Elem()

		default:
			return fmt.Errorf("%s: cannot step into %s", e.Name, ty)
		}
	}

	e.Expr = expr.String()
	e.Type = types.TypeString(ty, qualify)
	return nil
}

// render executes the template and formats the result.
func render(input *Input) ([]byte, error) {
	tmpl, err := template.New("keygen.go.tmpl").Funcs(template.FuncMap{
		"makeDocs": makeDocs,
	}).Parse(tmplText)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "keygen.go.tmpl", input); err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}

func Main(config string, logger *slog.Logger) error {
	if filepath.Ext(config) != ".yaml" {
		return errors.New("file argument must end in .yaml")
	}

	input := Input{
		Package: os.Getenv("GOPACKAGE"),
		Config:  filepath.Base(config),
	}
	out := strings.TrimSuffix(config, ".yaml") + ".go"

	buildinfo, err := buildinfo.ReadFile(os.Args[0])
	if err != nil {
		return err
	}
	input.Binary = buildinfo.Path

	text, err := os.ReadFile(config)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(text, &input.Entries); err != nil {
		return err
	}

	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports |
			packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Dir: filepath.Dir(config),
	}, ".")
	if err != nil {
		return fmt.Errorf("loading package: %w", err)
	}
	if len(pkgs) != 1 || pkgs[0].Types == nil {
		return errors.New("could not load the package containing the config")
	}
	pkg := pkgs[0]
	if input.Package == "" {
		input.Package = pkg.Name
	}
	// The package may not type-check while its generated file is stale; the
	// declarations we need are usually still there.
	for _, err := range pkg.Errors {
		logger.Debug("ignoring package error", "error", err)
	}
	logger.Debug("loaded package", "path", pkg.PkgPath, "files", len(pkg.GoFiles))

	imports := map[string]struct{}{keypathImport: {}}
	qualify := func(p *types.Package) string {
		if p == pkg.Types {
			return ""
		}
		imports[p.Path()] = struct{}{}
		return p.Name()
	}

	for i := range input.Entries {
		e := &input.Entries[i]
		if err := resolve(pkg.Types, e, qualify); err != nil {
			return err
		}
		logger.Debug("resolved path", "name", e.Name, "from", e.From, "expr", e.Expr, "type", e.Type)
	}

	for path := range imports {
		input.Imports = append(input.Imports, strconv.Quote(path))
	}
	slices.Sort(input.Imports)

	src, err := render(&input)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, src, 0o644); err != nil { //nolint:gosec // Generated source is world-readable.
		return err
	}
	logger.Info("generated paths", "file", out, "count", len(input.Entries))
	return nil
}

func main() {
	level := slog.LevelWarn
	if os.Getenv("KEYGEN_LOG") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var failed bool
	for _, config := range os.Args[1:] {
		if err := Main(config, logger); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", config, err)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}
