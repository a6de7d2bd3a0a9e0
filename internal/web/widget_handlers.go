// internal/web/widget_handlers.go - Top Hosts widget endpoints
package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tophosts/internal/widget"
)

const maxWidgetBody = 1 << 20

// POST /api/widgets/tophosts/view - render the widget for the posted fields
func (s *Server) renderTopHosts(c *gin.Context) {
	f, ok := s.bindFields(c)
	if !ok {
		return
	}

	view := s.render(c.Request.Context(), f, "api", c.GetString("request_id"))
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// POST /api/widgets/tophosts/column - normalize and validate one column
func (s *Server) saveColumn(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	defaults := s.widgets.Defaults()
	column, err := defaults.DecodeColumn(body)
	if err != nil {
		badRequest(c, err)
		return
	}
	column = widget.NormalizeColumn(column)

	if errs := defaults.ValidateColumn(column, ""); len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": column})
}

// POST /api/widgets/tophosts/validate - check a whole widget configuration
func (s *Server) validateFields(c *gin.Context) {
	f, ok := s.bindFields(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": f})
}

func (s *Server) bindFields(c *gin.Context) (widget.Fields, bool) {
	body, err := readBody(c)
	if err != nil {
		badRequest(c, err)
		return widget.Fields{}, false
	}

	f, err := s.widgets.Defaults().PrepareFields(body)
	if err != nil {
		badRequest(c, err)
		return widget.Fields{}, false
	}
	return f, true
}

// render never fails: a failed render becomes a view carrying the error
// message in place of the rows.
func (s *Server) render(ctx context.Context, f widget.Fields, source, requestID string) *widget.View {
	start := time.Now()
	view, err := s.widgets.Render(ctx, f)

	rows := 0
	if view != nil {
		rows = len(view.Rows)
	}
	s.metrics.RecordRender(source, rows, err, time.Since(start))

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"widget":     f.Name,
			"source":     source,
		}).Error("Failed to render Top Hosts widget")
		return widget.ErrorView(f, err)
	}

	logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"widget":     f.Name,
		"rows":       rows,
		"duration":   time.Since(start),
	}).Debug("Rendered Top Hosts widget")
	return view
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxWidgetBody))
}

// badRequest answers 400 with every message and the offending fields.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBody(err)})
}

func errorBody(err error) gin.H {
	messages := []string{}
	fields := []string{}

	var verrs widget.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			messages = append(messages, fe.Field+": "+fe.Message)
			fields = append(fields, fe.Field)
		}
	} else {
		messages = append(messages, err.Error())
	}

	return gin.H{"messages": messages, "fields": fields}
}
