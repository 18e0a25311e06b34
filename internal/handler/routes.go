package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/server"
)

// RouteLister returns the host's route table.
type RouteLister interface {
	Routes() []server.RouteInfo
}

// Routes serves the route table as JSON, as YAML when asked with
// ?format=yaml or an Accept header naming YAML, or as a plain text table
// with ?format=table.
//
//	GET|HEAD /routes
func Routes(rl RouteLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routes := rl.Routes()
		w.Header().Set("Cache-Control", "no-store")

		if strings.EqualFold(r.URL.Query().Get("format"), "table") {
			var buf bytes.Buffer
			if err := renderTable(&buf, routes); err != nil {
				logger.Error("failed to render route table", "err", err)
				apierror.Write(w, apierror.Internal("An internal server error occurred"))
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write(buf.Bytes())
			return
		}

		if wantsYAML(r) {
			out, err := yaml.Marshal(map[string]any{"routes": routes})
			if err != nil {
				logger.Error("failed to encode route table", "err", err)
				apierror.Write(w, apierror.Internal("An internal server error occurred"))
				return
			}
			w.Header().Set("Content-Type", "application/x-yaml")
			_, _ = w.Write(out)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"routes": routes})
	}
}

func wantsYAML(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "yaml", "yml":
		return true
	case "json":
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/yaml") || strings.Contains(accept, "application/x-yaml")
}

func renderTable(w io.Writer, routes []server.RouteInfo) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(
			tw.Rendition{
				Borders: tw.BorderNone,
				Symbols: tw.NewSymbols(tw.StyleASCII),
				Settings: tw.Settings{
					Lines: tw.Lines{
						ShowHeaderLine: tw.Off,
						ShowFooterLine: tw.Off,
						ShowTop:        tw.Off,
						ShowBottom:     tw.Off,
					},
					Separators: tw.Separators{
						ShowHeader:     tw.Off,
						ShowFooter:     tw.Off,
						BetweenRows:    tw.Off,
						BetweenColumns: tw.Off,
					},
				},
			},
		)),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Row: tw.CellConfig{
				Formatting:   tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:    tw.CellAlignment{Global: tw.AlignLeft},
				ColMaxWidths: tw.CellWidth{Global: 60},
			},
		}),
	)

	table.Header([]string{"Method", "Path", "Validates", "Description"})
	rows := make([][]string, 0, len(routes))
	for _, rt := range routes {
		desc := rt.Description
		if rt.Native {
			desc = strings.TrimSpace(desc + " (native)")
		}
		rows = append(rows, []string{rt.Method, rt.Path, strings.Join(rt.Validates, ","), desc})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
