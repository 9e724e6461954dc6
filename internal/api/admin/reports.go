package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/api/pagination"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
)

type resolveReportRequest struct {
	Status string  `json:"status" binding:"required,oneof=reviewed resolved dismissed"`
	Note   *string `json:"note" binding:"omitempty,max=1000"`
}

var reportStatuses = map[string]bool{
	"":                           true,
	models.ReportStatusPending:   true,
	models.ReportStatusReviewed:  true,
	models.ReportStatusResolved:  true,
	models.ReportStatusDismissed: true,
}

// ListReportsHandler pages through the community's reports, optionally by status
// GET /admin/reports?status=pending&page=1&limit=20
func (h *Handlers) ListReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		if !reportStatuses[status] {
			apierror.Respond(c, apierror.Validation(map[string][]string{
				"status": {"must be one of pending, reviewed, resolved, dismissed"},
			}))
			return
		}
		page, err := pagination.Parse(c, 20, pagination.MaxLimit)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		reports, total, err := h.reports.ListReports(c.Request.Context(), middleware.CurrentTenant(c).ID,
			status, page.Limit, page.Offset)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports, "pagination": page.WithTotal(total)})
	}
}

// ResolveReportHandler records the outcome of a report
// PATCH /admin/reports/:id
func (h *Handlers) ResolveReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		report, err := h.reports.ResolveReport(c.Request.Context(), middleware.CurrentTenant(c).ID,
			c.Param("id"), req.Status, middleware.CurrentUserID(c))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if report == nil {
			apierror.Respond(c, apierror.NotFound("Report not found"))
			return
		}

		h.audit(c, "report_"+req.Status, "forum_report", report.ID, req.Note, map[string]interface{}{
			"target_type": report.TargetType,
			"target_id":   report.TargetID,
		})
		c.JSON(http.StatusOK, gin.H{"report": report})
	}
}
