package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/services"
)

const (
	maxImportUpload = 32 << 20
	importChunkSize = 500
	rowKey          = "_row"
)

var errNoDataRows = errors.New("file must have a header row and at least one data row")

// ImportHandler loads the catalog from CSV or Excel spreadsheets through the
// same upsert path as the sync API.
type ImportHandler struct {
	sync   *services.SyncService
	logger *logrus.Entry
}

func NewImportHandler(sync *services.SyncService, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		sync:   sync,
		logger: logger.WithField("component", "import_handler"),
	}
}

// GetImportTemplate godoc
// @Summary Catalog import template
// @Description Returns the column definition as JSON, or an empty CSV/XLSX template
// @Tags Admin
// @Produce json
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.ImportTemplate
// @Router /admin/catalog/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	template := models.CatalogImportTemplate()

	switch c.DefaultQuery("format", "json") {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.csv")

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = headerText(col)
	}
	writer := csv.NewWriter(c.Writer)
	writer.Write(headers)
	writer.Flush()
}

func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, headerText(col))
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Catalog Import")
	f.SetCellValue("Instructions", "A2", "Rows are matched by External ID, then by SKU. Unknown products are created.")
	f.SetCellValue("Instructions", "A4", "Column")
	f.SetCellValue("Instructions", "B4", "Description")
	f.SetCellValue("Instructions", "C4", "Required")
	f.SetCellValue("Instructions", "D4", "Example")
	for i, col := range template.Columns {
		row := i + 5
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Example)
	}
	f.SetColWidth("Instructions", "A", "A", 20)
	f.SetColWidth("Instructions", "B", "B", 60)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.xlsx")
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("failed to write import template")
	}
}

// ImportCatalog godoc
// @Summary Import catalog from a spreadsheet
// @Description Upserts products from a CSV or XLSX file. Rows with unusable cells are reported and skipped.
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param validateOnly formData bool false "Only check the file"
// @Success 200 {object} models.ImportResult
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/catalog/import [post]
func (h *ImportHandler) ImportCatalog(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV or Excel file")
		return
	}
	defer file.Close()

	var rows []map[string]string
	switch name := strings.ToLower(header.Filename); {
	case strings.HasSuffix(name, ".csv"):
		rows, err = parseCSV(file)
	case strings.HasSuffix(name, ".xlsx"):
		rows, err = parseXLSX(file)
	default:
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", "Only CSV and XLSX files are supported")
		return
	}
	if err != nil {
		respondError(c, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	result := models.ImportResult{
		TotalRows:    len(rows),
		ValidateOnly: c.DefaultPostForm("validateOnly", "false") == "true",
	}

	products := make([]models.SyncProduct, 0, len(rows))
	for _, row := range rows {
		product, rowErrs := rowToSyncProduct(row)
		if len(rowErrs) > 0 {
			result.Errors = append(result.Errors, rowErrs...)
			result.Failed++
			continue
		}
		products = append(products, product)
	}

	if !result.ValidateOnly {
		ctx := c.Request.Context()
		for start := 0; start < len(products); start += importChunkSize {
			end := start + importChunkSize
			if end > len(products) {
				end = len(products)
			}
			results, _ := h.sync.UpsertProducts(ctx, products[start:end])
			for _, r := range results {
				switch r.Status {
				case models.SyncItemCreated:
					result.Created++
				case models.SyncItemUpdated:
					result.Updated++
				default:
					result.Failed++
				}
			}
			result.Results = append(result.Results, results...)
		}
	}

	h.logger.WithFields(logrus.Fields{
		"file":          header.Filename,
		"rows":          result.TotalRows,
		"created":       result.Created,
		"updated":       result.Updated,
		"failed":        result.Failed,
		"validate_only": result.ValidateOnly,
	}).Info("spreadsheet catalog import finished")

	c.JSON(http.StatusOK, result)
}

func headerText(col models.ImportColumn) string {
	if col.Required {
		return col.Name + " *"
	}
	return col.Name
}

// normalizeHeader maps "External ID *", "external_id" and "externalId" to
// the same key
func normalizeHeader(h string) string {
	h = strings.TrimSuffix(strings.TrimSpace(h), "*")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\ufeff':
			return -1
		}
		return r
	}, strings.ToLower(h))
}

func parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(headers) == 1 && strings.Contains(headers[0], ";") {
		return nil, fmt.Errorf("CSV must be comma separated")
	}
	for i := range headers {
		headers[i] = normalizeHeader(headers[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if row := toRow(headers, record, line); row != nil {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, errNoDataRows
	}
	return rows, nil
}

func parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}
	// the export names its sheet Catalog, the template Products
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") || strings.EqualFold(name, "Catalog") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, errNoDataRows
	}

	headers := excelRows[0]
	for i := range headers {
		headers[i] = normalizeHeader(headers[i])
	}

	var rows []map[string]string
	for idx, record := range excelRows[1:] {
		if row := toRow(headers, record, idx+2); row != nil {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, errNoDataRows
	}
	return rows, nil
}

// toRow returns nil for blank lines
func toRow(headers, record []string, line int) map[string]string {
	row := make(map[string]string, len(headers)+1)
	blank := true
	for i, value := range record {
		if i >= len(headers) {
			break
		}
		value = strings.TrimSpace(value)
		if value != "" {
			blank = false
		}
		row[headers[i]] = value
	}
	if blank {
		return nil
	}
	row[rowKey] = strconv.Itoa(line)
	return row
}

func rowToSyncProduct(row map[string]string) (models.SyncProduct, []models.ImportRowError) {
	line, _ := strconv.Atoi(row[rowKey])

	var errs []models.ImportRowError
	fail := func(column, message string) {
		errs = append(errs, models.ImportRowError{Row: line, Column: column, Message: message})
	}

	product := models.SyncProduct{
		ExternalID:  row["externalid"],
		Name:        row["name"],
		Description: row["description"],
		ImageURL:    row["imageurl"],
		Category:    row["category"],
		Sizes:       splitCell(row["sizes"]),
		Colors:      splitCell(row["colors"]),
	}
	if product.ExternalID == "" {
		fail("External ID", "is required")
	}
	if product.Name == "" {
		fail("Name", "is required")
	}
	if sku := row["sku"]; sku != "" {
		product.SKU = models.Ptr(sku)
	}

	price, err := services.ParsePrice(row["price"])
	if err != nil {
		fail("Price", err.Error())
	}
	product.Price = price

	isNew := row["new"]
	if isNew == "" {
		isNew = row["isnew"]
	}
	if isNew != "" {
		v, ok := parseYesNo(isNew)
		if !ok {
			fail("New", fmt.Sprintf("expected yes or no, got %q", isNew))
		}
		product.IsNew = models.Ptr(v)
	}

	return product, errs
}

// splitCell returns nil for an empty cell so the import keeps stored values
func splitCell(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseYesNo(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1", "да":
		return true, true
	case "no", "n", "false", "0", "нет":
		return false, true
	}
	return false, false
}
