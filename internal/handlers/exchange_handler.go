package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/services"
)

const (
	ExchangeCookieName = "exchange_session"
	DefaultFileLimit   = 100 * 1024 * 1024

	exchangeTypeCatalog = "catalog"
	exchangeTypeSale    = "sale"

	textContentType = "text/plain; charset=utf-8"
	xmlContentType  = "application/xml; charset=utf-8"
)

// ExchangeHandler implements the 1C CommerceML HTTP exchange. Replies are
// plain text lines starting with success or failure, except sale/query.
type ExchangeHandler struct {
	importer  *services.CommerceMLImporter
	staging   *services.StagingArea
	pipeline  *images.Pipeline
	exporter  *services.OrderExporter
	fileLimit int64
	session   string
	logger    *logrus.Entry
}

func NewExchangeHandler(
	importer *services.CommerceMLImporter,
	staging *services.StagingArea,
	pipeline *images.Pipeline,
	exporter *services.OrderExporter,
	fileLimit int64,
	logger *logrus.Logger,
) *ExchangeHandler {
	if fileLimit <= 0 {
		fileLimit = DefaultFileLimit
	}
	return &ExchangeHandler{
		importer:  importer,
		staging:   staging,
		pipeline:  pipeline,
		exporter:  exporter,
		fileLimit: fileLimit,
		session:   uuid.New().String(),
		logger:    logger.WithField("component", "exchange_handler"),
	}
}

// Handle dispatches on the type and mode query parameters
func (h *ExchangeHandler) Handle(c *gin.Context) {
	exchangeType := strings.ToLower(c.Query("type"))
	mode := strings.ToLower(c.Query("mode"))

	log := h.logger.WithFields(logrus.Fields{
		"type":     exchangeType,
		"mode":     mode,
		"method":   c.Request.Method,
		"filename": c.Query("filename"),
	})
	log.Debug("exchange request")

	if exchangeType != exchangeTypeCatalog && exchangeType != exchangeTypeSale {
		h.failure(c, "unsupported mode")
		return
	}

	switch mode {
	case "checkauth":
		h.text(c, fmt.Sprintf("success\n%s\n%s", ExchangeCookieName, h.session))
	case "init":
		h.text(c, fmt.Sprintf("zip=no\nfile_limit=%d", h.fileLimit))
	case "file":
		h.receiveFile(c, exchangeType, log)
	case "import":
		if exchangeType != exchangeTypeCatalog {
			h.failure(c, "unsupported mode")
			return
		}
		h.importDocument(c, log)
	case "complete", "deactivate":
		h.success(c)
	case "query":
		if exchangeType != exchangeTypeSale {
			h.failure(c, "unsupported mode")
			return
		}
		h.exportOrders(c, log)
	case "success":
		// the ERP confirms it received the orders; order state is not changed
		log.Info("sale exchange acknowledged")
		h.success(c)
	default:
		h.failure(c, "unsupported mode")
	}
}

func (h *ExchangeHandler) receiveFile(c *gin.Context, exchangeType string, log *logrus.Entry) {
	if c.Request.Method != http.MethodPost {
		h.failure(c, "file upload requires POST")
		return
	}
	filename := c.Query("filename")
	if strings.TrimSpace(filename) == "" {
		h.failure(c, "filename is required")
		return
	}

	data, err := h.readBody(c)
	if err != nil {
		log.WithError(err).Warn("failed to read exchange file")
		h.failure(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if exchangeType == exchangeTypeCatalog && images.IsImageFile(filename) {
		result, err := h.pipeline.Ingest(ctx, filename, data)
		if err != nil {
			log.WithError(err).Error("failed to store image")
			h.failure(c, "Error saving image")
			return
		}
		log.WithField("url", result.URL).Info("exchange image stored")
		h.success(c)
		return
	}

	if _, err := h.staging.Save(ctx, filename, data); err != nil {
		log.WithError(err).Error("failed to stage exchange file")
		h.failure(c, "Error saving file")
		return
	}
	h.success(c)
}

func (h *ExchangeHandler) importDocument(c *gin.Context, log *logrus.Entry) {
	filename := c.Query("filename")
	ctx := c.Request.Context()

	var data []byte
	if c.Request.Method == http.MethodPost {
		body, err := h.readBody(c)
		if err != nil {
			h.failure(c, err.Error())
			return
		}
		data = body
	}

	if len(data) == 0 {
		if strings.TrimSpace(filename) == "" {
			h.failure(c, "filename is required")
			return
		}
		staged, err := h.staging.Load(ctx, filename)
		if errors.Is(err, services.ErrStagedFileNotFound) {
			h.failure(c, "file not found: "+filename)
			return
		}
		if err != nil {
			log.WithError(err).Error("failed to load staged file")
			h.failure(c, "Error reading file")
			return
		}
		data = staged
	}

	stats, err := h.importer.ImportNamed(ctx, data, services.OriginExchange, filename)
	if errors.Is(err, services.ErrMalformedFeed) {
		log.WithError(err).Warn("rejected malformed document")
		h.failure(c, "Error parsing XML")
		return
	}
	if err != nil {
		log.WithError(err).Error("import failed")
		h.failure(c, "Error importing catalog")
		return
	}

	log.WithFields(logrus.Fields{
		"created":        stats.Created,
		"updated":        stats.Updated,
		"prices_updated": stats.PricesUpdated,
	}).Info("exchange import finished")
	h.success(c)
}

func (h *ExchangeHandler) exportOrders(c *gin.Context, log *logrus.Entry) {
	doc, err := h.exporter.Export(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to export orders")
		h.failure(c, "Error exporting orders")
		return
	}
	c.Data(http.StatusOK, xmlContentType, doc)
}

func (h *ExchangeHandler) readBody(c *gin.Context) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.fileLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file exceeds file_limit=%d", h.fileLimit)
		}
		return nil, errors.New("error reading request body")
	}
	return data, nil
}

func (h *ExchangeHandler) success(c *gin.Context) {
	h.text(c, "success")
}

func (h *ExchangeHandler) failure(c *gin.Context, reason string) {
	h.text(c, "failure\n"+reason)
}

func (h *ExchangeHandler) text(c *gin.Context, body string) {
	c.Data(http.StatusOK, textContentType, []byte(body))
}
