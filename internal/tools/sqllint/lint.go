package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const markerPrefix = "--sql "

var statementStart = regexp.MustCompile(`(?im)^\s*(select|insert|update|delete|with|create|alter|drop)\b`)

// statement is a const or var whose string value reads as SQL.
type statement struct {
	name string
	pos  token.Position
	text string
}

type finding struct {
	pos     token.Position
	name    string
	message string
}

func (f finding) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", f.pos.Filename, f.pos.Line, f.message, f.name)
}

// audit tracks markers across every file so a copied statement that kept its
// marker is reported against the first owner.
type audit struct {
	owners   map[uuid.UUID]statement
	findings []finding
}

func (a *audit) check(st statement) {
	id, err := markerOf(st.text)
	if err != nil {
		a.findings = append(a.findings, finding{pos: st.pos, name: st.name, message: err.Error()})
		return
	}
	if owner, ok := a.owners[id]; ok {
		a.findings = append(a.findings, finding{
			pos:     st.pos,
			name:    st.name,
			message: fmt.Sprintf("marker %s already used by %s at %s:%d", id, owner.name, owner.pos.Filename, owner.pos.Line),
		})
		return
	}
	a.owners[id] = st
}

// markerOf returns the uuid on the statement's first non-blank line. Only the
// canonical lower-case form is accepted so markers stay greppable.
func markerOf(text string) (uuid.UUID, error) {
	line := strings.TrimSpace(text)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	raw, ok := strings.CutPrefix(line, markerPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("statement has no %s<uuid> marker", markerPrefix)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.String() != raw {
		return uuid.Nil, fmt.Errorf("invalid marker uuid %q", raw)
	}
	return id, nil
}

// lintPaths audits every .go file under targets. Directories starting with
// "." or "_" are skipped below a target, as are vendor and node_modules.
func lintPaths(targets []string) ([]finding, error) {
	files, err := goFiles(targets)
	if err != nil {
		return nil, err
	}
	a := &audit{owners: make(map[uuid.UUID]statement)}
	for _, path := range files {
		statements, err := collect(path)
		if err != nil {
			return nil, err
		}
		for _, st := range statements {
			a.check(st)
		}
	}
	return a.findings, nil
}

func goFiles(targets []string) ([]string, error) {
	var files []string
	for _, target := range targets {
		err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			switch {
			case err != nil:
				return err
			case d.IsDir() && path != target && skipDir(d.Name()):
				return filepath.SkipDir
			case !d.IsDir() && filepath.Ext(path) == ".go":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "node_modules"
}

// collect returns the SQL-looking package-level and local string declarations
// in path, one per declared name.
func collect(path string) ([]statement, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	var out []statement
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range spec.Values {
			text, ok := stringValue(value)
			if !ok || !statementStart.MatchString(text) || i >= len(spec.Names) {
				continue
			}
			out = append(out, statement{name: spec.Names[i].Name, pos: fset.Position(value.Pos()), text: text})
		}
		return false
	})
	return out, nil
}

// stringValue folds string literals and their concatenations.
func stringValue(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return "", false
		}
		s, err := strconv.Unquote(e.Value)
		return s, err == nil
	case *ast.ParenExpr:
		return stringValue(e.X)
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return "", false
		}
		left, ok := stringValue(e.X)
		if !ok {
			return "", false
		}
		right, ok := stringValue(e.Y)
		return left + right, ok
	}
	return "", false
}
