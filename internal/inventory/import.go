package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/pkg/database"
)

type ImportHandler struct {
	db *gorm.DB
}

func NewImportHandler(db *gorm.DB) *ImportHandler {
	return &ImportHandler{db: db}
}

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type ImportRow struct {
	Name     string
	SKU      string
	Unit     string
	Stock    decimal.Decimal
	UnitCost decimal.Decimal
}

// ImportFile handles Excel/CSV upload for bulk inventory intake. Existing
// items (matched by SKU, then name) get a received lot for the imported
// quantity; unknown items are created.
func (h *ImportHandler) ImportFile(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)

	if strings.HasSuffix(fileName, ".xlsx") || strings.HasSuffix(fileName, ".xls") {
		rows, err = parseExcel(file)
	} else if strings.HasSuffix(fileName, ".csv") {
		rows, err = parseCSV(file)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format. Please upload .xlsx or .csv"})
		return
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to parse file: %v", err)})
		return
	}

	result := ImportResult{
		TotalRows: len(rows),
		Errors:    []string{},
	}

	for i, row := range rows {
		if row.Name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Name is required", i+2))
			result.FailedCount++
			continue
		}

		var existing database.InventoryItem
		var found bool
		if row.SKU != "" {
			if err := h.db.Where("business_id = ? AND sku = ?", businessID, row.SKU).First(&existing).Error; err == nil {
				found = true
			}
		}
		if !found {
			if err := h.db.Where("business_id = ? AND name = ?", businessID, row.Name).First(&existing).Error; err == nil {
				found = true
			}
		}

		if found {
			err = h.db.Transaction(func(tx *gorm.DB) error {
				if row.Stock.Sign() > 0 {
					if err := tx.Create(&database.InventoryLot{
						BusinessID:      businessID,
						InventoryItemID: existing.ID,
						QtyOnHand:       row.Stock,
						UnitCost:        row.UnitCost,
						ReceivedAt:      time.Now(),
					}).Error; err != nil {
						return err
					}
					existing.CurrentStock = existing.CurrentStock.Add(row.Stock)
				}
				if row.UnitCost.Sign() > 0 {
					existing.UnitCost = row.UnitCost
				}
				return tx.Save(&existing).Error
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to update %s - %v", i+2, row.Name, err))
				result.FailedCount++
				continue
			}
			result.SuccessCount++
		} else {
			unit := row.Unit
			if unit == "" {
				unit = "pcs"
			}
			newItem := database.InventoryItem{
				BusinessID:   businessID,
				Name:         row.Name,
				SKU:          row.SKU,
				Unit:         unit,
				CurrentStock: row.Stock,
				UnitCost:     row.UnitCost,
				IsActive:     true,
			}
			if err := h.db.Create(&newItem).Error; err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to create %s - %v", i+2, row.Name, err))
				result.FailedCount++
				continue
			}
			if row.Stock.Sign() > 0 {
				h.db.Create(&database.InventoryLot{
					BusinessID:      businessID,
					InventoryItemID: newItem.ID,
					QtyOnHand:       row.Stock,
					UnitCost:        row.UnitCost,
					ReceivedAt:      time.Now(),
				})
			}
			result.SuccessCount++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": fmt.Sprintf("Import completed: %d success, %d failed", result.SuccessCount, result.FailedCount),
	})
}

var importColumns = map[string][]string{
	"name":      {"name", "item", "item name", "ingredient"},
	"sku":       {"sku", "code", "item code"},
	"unit":      {"unit", "uom"},
	"stock":     {"stock", "qty", "quantity", "stock qty"},
	"unit_cost": {"unit cost", "cost", "price"},
}

func mapColumns(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for field, aliases := range importColumns {
			for _, alias := range aliases {
				if normalized == alias {
					if _, taken := colMap[field]; !taken {
						colMap[field] = i
					}
				}
			}
		}
	}
	return colMap
}

func parseRows(records [][]string) ([]ImportRow, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	colMap := mapColumns(records[0])
	var result []ImportRow
	for _, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		cell := func(field string) string {
			if idx, ok := colMap[field]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		importRow := ImportRow{
			Name: cell("name"),
			SKU:  cell("sku"),
			Unit: cell("unit"),
		}
		if v, err := decimal.NewFromString(cell("stock")); err == nil {
			importRow.Stock = v
		}
		if v, err := decimal.NewFromString(cell("unit_cost")); err == nil {
			importRow.UnitCost = v
		}

		if importRow.Name != "" {
			result = append(result, importRow)
		}
	}
	return result, nil
}

func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func parseCSV(file io.Reader) ([]ImportRow, error) {
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	return parseRows(records)
}

// DownloadTemplate generates a sample Excel template for import
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Name", "SKU", "Unit", "Stock", "Unit Cost"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}

	sampleData := [][]interface{}{
		{"Beef", "BEF", "kg", 12.5, 650},
		{"Burger Bun", "BUN", "pcs", 80, 15},
		{"Cooking Oil", "OIL", "liter", 20, 240},
	}
	for rowIdx, row := range sampleData {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	f.SetColWidth("Sheet1", "A", "A", 20)
	f.SetColWidth("Sheet1", "B", "B", 12)
	f.SetColWidth("Sheet1", "C", "E", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=inventory_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate template"})
		return
	}
}
