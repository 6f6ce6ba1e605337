package handler

import (
	"net/http"

	"milkrun/internal/middleware"
	"milkrun/internal/model"
	"milkrun/internal/service"
	"milkrun/pkg/response"

	"github.com/gin-gonic/gin"
)

type DraftHandler struct {
	draftService service.DraftService
}

func NewDraftHandler(draftService service.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

func (h *DraftHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	drafts := router.Group("/api/drafts")
	drafts.Use(auth.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff))
	{
		drafts.PUT("/:areaId/:date", h.SaveDraft)
		drafts.GET("/:areaId/:date", h.GetDraft)
		drafts.DELETE("/:areaId/:date", h.DeleteDraft)
	}
}

// SaveDraft stores unsubmitted attendance. Rapid saves are coalesced.
// @Summary      Save draft
// @Tags         drafts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        areaId   path      string                    true  "Area ID"
// @Param        date     path      string                    true  "Business date (YYYY-MM-DD)"
// @Param        payload  body      service.SaveDraftRequest  true  "Draft"
// @Success      202      {object}  response.Response{data=draft.Draft}
// @Failure      400      {object}  response.Response
// @Router       /api/drafts/{areaId}/{date} [put]
func (h *DraftHandler) SaveDraft(c *gin.Context) {
	var req service.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	d, err := h.draftService.Save(c.Request.Context(), actorFrom(c), c.Param("areaId"), c.Param("date"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, d))
}

// GetDraft returns the latest draft, including one not yet written through
// @Summary      Get draft
// @Tags         drafts
// @Security     BearerAuth
// @Produce      json
// @Param        areaId  path      string  true  "Area ID"
// @Param        date    path      string  true  "Business date (YYYY-MM-DD)"
// @Success      200     {object}  response.Response{data=draft.Draft}
// @Failure      404     {object}  response.Response
// @Router       /api/drafts/{areaId}/{date} [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	d, err := h.draftService.Get(c.Request.Context(), actorFrom(c), c.Param("areaId"), c.Param("date"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// DeleteDraft discards a draft
// @Summary      Delete draft
// @Tags         drafts
// @Security     BearerAuth
// @Produce      json
// @Param        areaId  path      string  true  "Area ID"
// @Param        date    path      string  true  "Business date (YYYY-MM-DD)"
// @Success      200     {object}  response.Response
// @Router       /api/drafts/{areaId}/{date} [delete]
func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	if err := h.draftService.Delete(c.Request.Context(), actorFrom(c), c.Param("areaId"), c.Param("date")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}
