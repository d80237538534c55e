package audience

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"audience/internal/logger"
	"audience/pkg/errors"
)

// Calculator is the part of Service the HTTP layer depends on.
type Calculator interface {
	GetAudienceSize(ctx context.Context, raw interface{}) (int64, error)
	Compile(ctx context.Context, raw interface{}) (*Compilation, error)
}

type Handler struct {
	Service Calculator
	Logger  logger.Logger
}

func NewHandler(service Calculator, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		audience := v1.Group("/audience")
		{
			audience.POST("/size", h.GetAudienceSize)
			audience.POST("/filter", h.CompileFilter)
		}
	}

	// path served by the first release of the service
	router.POST("/api/audience-size", h.GetAudienceSize)
}

func (h *Handler) bindRequest(c *gin.Context) (SizeRequest, bool) {
	var req SizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrInvalidInput.WithMessage("Request body must be a JSON object.").WithCause(err))
		return req, false
	}
	return req, true
}

// GetAudienceSize godoc
// @Summary      Calculate audience size
// @Description  Count the customers matching an ordered list of segmentation rules
// @Tags         audience
// @Accept       json
// @Produce      json
// @Param        request  body      SizeRequest  true  "Segmentation rules"
// @Success      200      {object}  SizeResponse
// @Failure      429      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /audience/size [post]
func (h *Handler) GetAudienceSize(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	size, err := h.Service.GetAudienceSize(c.Request.Context(), req.Rules)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SizeResponse{Size: size})
}

// CompileFilter godoc
// @Summary      Compile rules to a store filter
// @Description  Validate the rules and return the MongoDB filter they compile to, without querying
// @Tags         audience
// @Accept       json
// @Produce      json
// @Param        request  body      SizeRequest  true  "Segmentation rules"
// @Success      200      {object}  FilterResponse
// @Failure      429      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /audience/filter [post]
func (h *Handler) CompileFilter(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	comp, err := h.Service.Compile(c.Request.Context(), req.Rules)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	filter, err := ExtJSON(comp.Filter)
	if err != nil {
		h.HandleError(c, errors.ErrInternal.WithCause(err))
		return
	}

	c.JSON(http.StatusOK, FilterResponse{
		Policy:    comp.Policy,
		Collapsed: comp.Collapsed,
		Rules:     len(comp.Rules),
		Filter:    filter,
	})
}
