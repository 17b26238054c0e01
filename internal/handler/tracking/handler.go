package tracking

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appship/engage-api/internal/middleware"
	"github.com/appship/engage-api/internal/model"
	"github.com/appship/engage-api/internal/service/tracking"
)

// transparentGIF is the 43-byte 1x1 transparent pixel served for open
// callbacks.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00,
	0x3b,
}

type Handler struct {
	service *tracking.Service
}

func NewHandler(service *tracking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/t", h.Track)
}

// Track answers pixel and click callbacks. Whatever went wrong inside
// the pipeline, the mail client gets its image and the clicking user
// gets their redirect; only requests with no plausible response left
// (bad action, bad redirect, no id) see a 4xx.
func (h *Handler) Track(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.String(http.StatusBadRequest, "missing id")
		return
	}

	kind := model.KindLeadSequence
	if c.Query("source") == "cold" {
		kind = model.KindColdOutreach
	}

	req := tracking.TrackRequest{
		MessageID:   id,
		Action:      model.TrackingAction(c.Query("action")),
		Kind:        kind,
		RedirectURL: c.Query("redirect"),
		RateLimited: middleware.IsRateLimited(c),
	}

	result, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	switch result.Type {
	case tracking.ResultRedirect:
		c.Redirect(http.StatusFound, result.RedirectURL)
	default:
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Data(http.StatusOK, "image/gif", transparentGIF)
	}
}
