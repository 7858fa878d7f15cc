package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/web"
)

const reportTemplate = "inventory.html"

// Renderer converts an HTML document into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// ReportPayload is everything printed on the report PDF.
type ReportPayload struct {
	Title       string
	Period      string
	GeneratedAt time.Time
	Report      analytics.Report
}

// PDFExporter renders reports through a Gotenberg-backed Renderer.
type PDFExporter struct {
	renderer  Renderer
	formatter Formatter
	tmpl      *template.Template
}

// NewPDFExporter prepares the report template.
func NewPDFExporter(renderer Renderer, formatter Formatter) *PDFExporter {
	funcs := template.FuncMap{
		"money":    formatter.Money,
		"percent":  formatter.Percent,
		"quantity": formatter.Quantity,
	}
	return &PDFExporter{
		renderer:  renderer,
		formatter: formatter,
		tmpl:      template.Must(template.New(reportTemplate).Funcs(funcs).ParseFS(web.Templates, "templates/reports/"+reportTemplate)),
	}
}

// BuildHTML renders the report document without converting it.
func (p *PDFExporter) BuildHTML(payload ReportPayload) (string, error) {
	if payload.Title == "" {
		payload.Title = "Inventory Report"
	}
	if payload.GeneratedAt.IsZero() {
		payload.GeneratedAt = time.Now()
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("export: render html: %w", err)
	}
	return buf.String(), nil
}

// RenderReport builds the HTML document and converts it to PDF.
func (p *PDFExporter) RenderReport(ctx context.Context, payload ReportPayload) ([]byte, error) {
	if p == nil || p.renderer == nil {
		return nil, errors.New("export: pdf renderer not configured")
	}
	html, err := p.BuildHTML(payload)
	if err != nil {
		return nil, err
	}
	pdf, err := p.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("export: render pdf: %w", err)
	}
	return pdf, nil
}
