// Command sqllint checks that every inline SQL constant carries a
// "--sql <uuid>" marker on its first line and that no marker is reused.
// The runner logs the marker as the query identity, so a missing or
// duplicated uuid breaks log attribution.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var markerRe = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

type finding struct {
	pos     token.Position
	name    string
	message string
}

func main() {
	flag.Parse()

	roots := flag.Args()
	if len(roots) == 0 {
		roots = []string{"internal/sqlinline"}
	}

	var findings []finding
	seen := map[string]token.Position{}

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			fs, err := lintFile(path, seen)
			findings = append(findings, fs...)
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}

	if len(findings) == 0 {
		return
	}
	for _, f := range findings {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", f.pos, f.name, f.message)
	}
	os.Exit(1)
}

// lintFile inspects every top-level Q-prefixed string constant. The
// query files follow that naming, so anything else is ignored.
func lintFile(path string, seen map[string]token.Position) ([]finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, err
	}

	var findings []finding
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				if !strings.HasPrefix(name.Name, "Q") || i >= len(vs.Values) {
					continue
				}
				lit, ok := vs.Values[i].(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				raw, err := unquote(lit.Value)
				if err != nil {
					continue
				}
				pos := fset.Position(lit.Pos())

				m := markerRe.FindStringSubmatch(firstLine(raw))
				if m == nil {
					findings = append(findings, finding{
						pos:     pos,
						name:    name.Name,
						message: "first line must be --sql <uuid>",
					})
					continue
				}
				if prev, dup := seen[m[1]]; dup {
					findings = append(findings, finding{
						pos:     pos,
						name:    name.Name,
						message: fmt.Sprintf("marker %s already used at %s", m[1], prev),
					})
					continue
				}
				seen[m[1]] = pos
			}
		}
	}
	return findings, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\r\n\t ")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if strings.HasPrefix(v, "`") {
		return strings.Trim(v, "`"), nil
	}
	return strconv.Unquote(v)
}
