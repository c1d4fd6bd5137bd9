// metricsgen generates the Prometheus and no-op constructors for a Metrics
// struct. Each field of type metrics.Gauge or metrics.Counter becomes one
// metric. Its name is the field name in snake case unless the field has a
// metrics_name tag, its help text is the field comment, and extra label names
// come from a comma separated metrics_labels tag.
//
// Usage, from a go:generate directive in the package's metrics.go:
//
//	//go:generate go run ../scripts/metricsgen -struct=Metrics
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"unicode"
)

const outputFile = "metrics.gen.go"

var (
	structName = flag.String("struct", "Metrics", "name of the struct to generate constructors for")
	dir        = flag.String("dir", ".", "package directory")
)

func main() {
	flag.Parse()
	src, err := generate(*dir, *structName)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(*dir, outputFile), src, 0o644); err != nil {
		log.Fatal(err)
	}
}

type metric struct {
	Field  string
	Kind   string
	Name   string
	Help   string
	Labels []string
}

// LabelList renders the extra label names as Go string literals.
func (m metric) LabelList() string {
	quoted := make([]string, len(m.Labels))
	for i, l := range m.Labels {
		quoted[i] = strconv.Quote(l)
	}
	return strings.Join(quoted, ", ")
}

type templateData struct {
	Package string
	Struct  string
	Metrics []metric
}

func generate(dir, name string) ([]byte, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi os.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go") && fi.Name() != outputFile
	}, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	for pkgName, pkg := range pkgs {
		for _, file := range pkg.Files {
			st := findStruct(file, name)
			if st == nil {
				continue
			}
			metrics, err := parseFields(st)
			if err != nil {
				return nil, err
			}
			return render(templateData{Package: pkgName, Struct: name, Metrics: metrics})
		}
	}
	return nil, fmt.Errorf("struct %s not found in %s", name, dir)
}

func findStruct(file *ast.File, name string) *ast.StructType {
	var found *ast.StructType
	ast.Inspect(file, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok || ts.Name.Name != name {
			return found == nil
		}
		if st, ok := ts.Type.(*ast.StructType); ok {
			found = st
		}
		return false
	})
	return found
}

func parseFields(st *ast.StructType) ([]metric, error) {
	var metrics []metric
	for _, f := range st.Fields.List {
		sel, ok := f.Type.(*ast.SelectorExpr)
		if !ok {
			continue
		}
		kind := sel.Sel.Name
		if kind != "Gauge" && kind != "Counter" {
			return nil, fmt.Errorf("unsupported metric type %s", kind)
		}

		var tag reflect.StructTag
		if f.Tag != nil {
			raw, err := strconv.Unquote(f.Tag.Value)
			if err != nil {
				return nil, err
			}
			tag = reflect.StructTag(raw)
		}
		help := strings.Join(strings.Fields(f.Doc.Text()), " ")

		for _, ident := range f.Names {
			m := metric{Field: ident.Name, Kind: kind, Name: toSnakeCase(ident.Name), Help: help}
			if n := tag.Get("metrics_name"); n != "" {
				m.Name = n
			}
			if ls := tag.Get("metrics_labels"); ls != "" {
				for _, l := range strings.Split(ls, ",") {
					m.Labels = append(m.Labels, strings.TrimSpace(l))
				}
			}
			metrics = append(metrics, m)
		}
	}
	return metrics, nil
}

func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

var tmpl = template.Must(template.New("metrics").Parse(`// Code generated by metricsgen. DO NOT EDIT.

package {{ .Package }}

import (
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

func PrometheusMetrics(namespace string, labelsAndValues ...string) *{{ .Struct }} {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &{{ .Struct }}{
{{- range .Metrics }}
		{{ .Field }}: prometheus.New{{ .Kind }}From(stdprometheus.{{ .Kind }}Opts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      {{ printf "%q" .Name }},
			Help:      {{ printf "%q" .Help }},
		}, {{ if .Labels }}append(labels, {{ .LabelList }}){{ else }}labels{{ end }}).With(labelsAndValues...),
{{- end }}
	}
}

func NopMetrics() *{{ .Struct }} {
	return &{{ .Struct }}{
{{- range .Metrics }}
		{{ .Field }}: discard.New{{ .Kind }}(),
{{- end }}
	}
}
`))

func render(data templateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}
