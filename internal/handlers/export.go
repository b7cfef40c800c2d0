package handlers

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Экспорт отдаёт элементы текущего вида одним плоским списком, в
// порядке корзин сайдбара.

func (s *ItemHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv")
}

func (s *ItemHandler) ExportXML(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xml")
}

func (s *ItemHandler) ExportXLS(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xls")
}

func (s *ItemHandler) export(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	kind, user, _, ok := s.itemRequest(w, r, false)
	if !ok {
		return
	}
	view := requestView(r)

	result, err := s.Service.Index(r.Context(), kind, user, view)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "export_"+format),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var items []*item.Item
	for _, b := range s.Service.Buckets().Order {
		items = append(items, result.Groups[b]...)
	}

	filename := fmt.Sprintf("%ss.%s", kind, format)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	switch format {
	case "csv":
		err = writeCSV(w, items)
	case "xml":
		err = writeXML(w, items)
	case "xls":
		err = writeXLS(w, items)
	}
	if err != nil {
		logger.Error("HTTP: Ошибка выгрузки", err,
			zap.String("format", format),
			zap.String("client_ip", r.RemoteAddr))
		return
	}

	logger.Info("HTTP_OUT: Выгрузка сформирована",
		zap.String("format", format),
		zap.Int("count", len(items)),
		zap.Duration("ms", time.Since(start)))
}

var exportHeader = []string{
	"id", "kind", "name", "bucket", "due_at", "completed_at",
	"priority", "category", "asset_kind", "asset_id", "assigned_to", "background",
}

func exportRow(it *item.Item) []string {
	return []string{
		it.UUID.String(),
		string(it.Kind),
		it.Name,
		string(it.Bucket),
		formatTime(it.DueAt),
		formatTime(it.CompletedAt),
		it.Priority,
		it.Category,
		string(it.AssetKind),
		formatUUID(it.AssetID),
		formatUUID(it.AssignedTo),
		it.Background,
	}
}

func writeCSV(w http.ResponseWriter, items []*item.Item) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write(exportRow(it)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type xmlItem struct {
	XMLName     xml.Name `xml:"item"`
	ID          string   `xml:"id"`
	Kind        string   `xml:"kind"`
	Name        string   `xml:"name"`
	Bucket      string   `xml:"bucket"`
	DueAt       string   `xml:"due_at,omitempty"`
	CompletedAt string   `xml:"completed_at,omitempty"`
	Priority    string   `xml:"priority,omitempty"`
	Category    string   `xml:"category,omitempty"`
	AssetKind   string   `xml:"asset_kind,omitempty"`
	AssetID     string   `xml:"asset_id,omitempty"`
	AssignedTo  string   `xml:"assigned_to,omitempty"`
	Background  string   `xml:"background,omitempty"`
}

type xmlItems struct {
	XMLName xml.Name  `xml:"items"`
	Items   []xmlItem `xml:"item"`
}

func writeXML(w http.ResponseWriter, items []*item.Item) error {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")

	doc := xmlItems{Items: make([]xmlItem, 0, len(items))}
	for _, it := range items {
		doc.Items = append(doc.Items, xmlItem{
			ID:          it.UUID.String(),
			Kind:        string(it.Kind),
			Name:        it.Name,
			Bucket:      string(it.Bucket),
			DueAt:       formatTime(it.DueAt),
			CompletedAt: formatTime(it.CompletedAt),
			Priority:    it.Priority,
			Category:    it.Category,
			AssetKind:   string(it.AssetKind),
			AssetID:     formatUUID(it.AssetID),
			AssignedTo:  formatUUID(it.AssignedTo),
			Background:  it.Background,
		})
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

// writeXLS отдаёт HTML-таблицу под типом Excel, как это делают
// табличные выгрузки старых CRM. Excel открывает её без нареканий.
func writeXLS(w http.ResponseWriter, items []*item.Item) error {
	w.Header().Set("Content-Type", "application/vnd.ms-excel; charset=utf-8")

	var b strings.Builder
	b.WriteString("<table>\n<tr>")
	for _, h := range exportHeader {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr>\n")
	for _, it := range items {
		b.WriteString("<tr>")
		for _, cell := range exportRow(it) {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")

	_, err := w.Write([]byte(b.String()))
	return err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatUUID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
