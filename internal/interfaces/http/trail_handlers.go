package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// trailQuery holds the filters shared by audit and changelog listings
type trailQuery struct {
	ActorID  *int64 `form:"actor_id"`
	Since    string `form:"since"`
	Until    string `form:"until"`
	Limit    int    `form:"limit"`
	Actions  string `form:"actions"`
	Field    string `form:"field"`
	Category string `form:"category"`
}

func (q trailQuery) window() (since, until *time.Time, err error) {
	parse := func(name, v string) (*time.Time, error) {
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%s must be RFC3339", name)
		}
		return &t, nil
	}
	if since, err = parse("since", q.Since); err != nil {
		return nil, nil, err
	}
	if until, err = parse("until", q.Until); err != nil {
		return nil, nil, err
	}
	return since, until, nil
}

// GetAuditTrail handles GET /api/records/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q trailQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	since, until, err := q.window()
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	filter := entity.AuditFilter{ActorID: q.ActorID, Since: since, Until: until, Limit: q.Limit}
	for _, a := range strings.Split(q.Actions, ",") {
		if a = strings.TrimSpace(a); a != "" {
			filter.Actions = append(filter.Actions, entity.AuditAction(a))
		}
	}

	entries, err := h.services.Audit.GetAuditTrail(c.Request.Context(), recordID, filter)
	if err != nil {
		h.fail(c, "get audit trail", err)
		return
	}
	h.ok(c, http.StatusOK, entries, nil)
}

// GetChangelog handles GET /api/records/:id/changelog
func (h *Handlers) GetChangelog(c *gin.Context) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q trailQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	since, until, err := q.window()
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	entries, err := h.services.Changelog.GetChangelog(c.Request.Context(), recordID, entity.ChangelogFilter{
		FieldName: q.Field,
		Category:  q.Category,
		ActorID:   q.ActorID,
		Since:     since,
		Until:     until,
		Limit:     q.Limit,
	})
	if err != nil {
		h.fail(c, "get changelog", err)
		return
	}
	h.ok(c, http.StatusOK, entries, nil)
}

// ExportAuditTrail handles GET /api/records/:id/audit/export?format=csv|xlsx
func (h *Handlers) ExportAuditTrail(c *gin.Context) {
	h.export(c, "audit_trail", h.services.Exports.ExportAuditTrailCSV, h.services.Exports.ExportAuditTrailXLSX)
}

// ExportChangelog handles GET /api/records/:id/changelog/export?format=csv|xlsx
func (h *Handlers) ExportChangelog(c *gin.Context) {
	h.export(c, "changelog", h.services.Exports.ExportChangelogCSV, h.services.Exports.ExportChangelogXLSX)
}

// ArchiveExports handles POST /api/records/:id/exports
func (h *Handlers) ArchiveExports(c *gin.Context) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.services.Exports.ArchiveExports(c.Request.Context(), recordID)
	if err != nil {
		h.fail(c, "archive exports", err)
		return
	}
	h.ok(c, http.StatusCreated, result, nil)
}

type renderFunc func(ctx context.Context, recordID int64) ([]byte, error)

func (h *Handlers) export(c *gin.Context, name string, csvFn, xlsxFn renderFunc) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	var (
		render      renderFunc
		contentType string
	)
	switch format {
	case "csv":
		render, contentType = csvFn, "text/csv; charset=utf-8"
	case "xlsx":
		render, contentType = xlsxFn, xlsxContentType
	default:
		h.badRequest(c, "format must be csv or xlsx")
		return
	}

	data, err := render(c.Request.Context(), recordID)
	if err != nil {
		h.fail(c, "export "+name, err)
		return
	}

	filename := "record-" + strconv.FormatInt(recordID, 10) + "-" + name + "." + format
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
