package content

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

// siteContentRequest is a partial update; absent fields keep their value and
// an empty string clears one.
type siteContentRequest struct {
	SiteTitle       *string           `json:"site_title" binding:"omitempty,max=200"`
	HeroTitle       *string           `json:"hero_title" binding:"omitempty,max=200"`
	HeroSubtitle    *string           `json:"hero_subtitle" binding:"omitempty,max=500"`
	ContactEmail    *string           `json:"contact_email" binding:"omitempty,email"`
	Socials         map[string]string `json:"socials" binding:"omitempty,max=20"`
	DefaultLanguage *string           `json:"default_language" binding:"omitempty,oneof=tr en"`
}

// apply copies the supplied fields onto s and returns the names it changed
func (r siteContentRequest) apply(s *models.TenantSettings) []string {
	var changed []string
	set := func(name string, dst **string, src *string) {
		if src == nil {
			return
		}
		changed = append(changed, name)
		if *src == "" {
			*dst = nil
			return
		}
		v := *src
		*dst = &v
	}
	set("site_title", &s.SiteTitle, r.SiteTitle)
	set("hero_title", &s.HeroTitle, r.HeroTitle)
	set("hero_subtitle", &s.HeroSubtitle, r.HeroSubtitle)
	set("contact_email", &s.ContactEmail, r.ContactEmail)
	if r.Socials != nil {
		changed = append(changed, "socials")
		s.Socials = r.Socials
	}
	if r.DefaultLanguage != nil {
		changed = append(changed, "default_language")
		s.DefaultLanguage = *r.DefaultLanguage
	}
	return changed
}

// GetSiteContentHandler returns the landing page content, or null before it is first saved
// GET /site-content
func (h *Handlers) GetSiteContentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		settings, err := h.tenants.GetSettings(c.Request.Context(), tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"content": settings})
	}
}

// UpdateSiteContentHandler edits the landing page content
// PATCH /site-content
func (h *Handlers) UpdateSiteContentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req siteContentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		settings, err := h.tenants.GetSettings(ctx, tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if settings == nil {
			settings = &models.TenantSettings{TenantID: tenant.ID}
		}

		changed := req.apply(settings)
		if err := h.tenants.UpsertSettings(ctx, settings); err != nil {
			apierror.Respond(c, err)
			return
		}

		h.auditor.Record(ctx, services.AuditEntry{
			TenantID:   tenant.ID,
			ActorID:    middleware.CurrentUserID(c),
			Action:     "site_content_update",
			TargetType: "tenant",
			TargetID:   tenant.ID,
			Metadata:   map[string]interface{}{"fields": changed},
		})
		c.JSON(http.StatusOK, gin.H{"content": settings})
	}
}
