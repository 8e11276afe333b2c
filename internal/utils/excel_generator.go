package utils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Jacobsin12/emma/internal/models"
)

const sheetName = "Telemetry"

// CreateExcelFile создает Excel файл с показаниями датчиков
func CreateExcelFile(filepath string, records []models.Telemetry) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Устанавливаем заголовки
	headers := []string{"Server Timestamp", "Device Timestamp", "Device ID", "Temperature (°C)", "Humidity (%)", "WiFi RSSI", "Free Heap"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	// Заполняем данные
	for rowIdx, record := range records {
		rowNum := rowIdx + 2 // Заголовок в первой строке

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum),
			record.ServerTimestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum),
			record.DeviceTimestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), record.DeviceID)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), record.Temperature)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), record.Humidity)

		if record.WifiRSSI != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), *record.WifiRSSI)
		}
		if record.FreeHeap != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNum), *record.FreeHeap)
		}
	}

	// Авто-ширина колонок
	for i := 1; i <= len(headers); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	// Подсвечиваем перегрев (> 60°C)
	highTempRule := []excelize.ConditionalFormatOptions{
		{
			Type:     "cell",
			Criteria: ">",
			Value:    "60",
			Format:   getConditionalFormatStyle(f, "#FFCCCC"),
		},
	}
	if err := f.SetConditionalFormat(sheetName, "D2:D1000", highTempRule); err != nil {
		return err
	}

	if len(records) > 1 {
		createChart(f, records)
	}

	createInfoSheet(f, records)

	f.SetActiveSheet(index)

	if err := f.SaveAs(filepath); err != nil {
		return err
	}

	return nil
}

func createChart(f *excelize.File, records []models.Telemetry) {
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       "Temperature",
				Categories: sheetName + "!$A$2:$A$" + fmt.Sprintf("%d", len(records)+1),
				Values:     sheetName + "!$D$2:$D$" + fmt.Sprintf("%d", len(records)+1),
			},
			{
				Name:       "Humidity",
				Categories: sheetName + "!$A$2:$A$" + fmt.Sprintf("%d", len(records)+1),
				Values:     sheetName + "!$E$2:$E$" + fmt.Sprintf("%d", len(records)+1),
			},
		},
		Title: []excelize.RichTextRun{
			{
				Text: "Temperature and Humidity Over Time",
			},
		},
		XAxis: excelize.ChartAxis{
			MajorGridLines: true,
		},
		YAxis: excelize.ChartAxis{
			MajorGridLines: true,
		},
		Dimension: excelize.ChartDimension{
			Width:  600,
			Height: 400,
		},
	}

	f.AddChart(sheetName, "I2", chart)
}

func createInfoSheet(f *excelize.File, records []models.Telemetry) {
	if len(records) == 0 {
		return
	}

	f.NewSheet("Info")

	metadata := map[string]interface{}{
		"Report Generated": time.Now().UTC().Format("2006-01-02 15:04:05"),
		"Total Records":    len(records),
		"Time Range": fmt.Sprintf("%s to %s",
			records[0].ServerTimestamp.Format("2006-01-02 15:04:05"),
			records[len(records)-1].ServerTimestamp.Format("2006-01-02 15:04:05")),
		"Temperature Range": fmt.Sprintf("%.2f°C - %.2f°C",
			findMinTemperature(records), findMaxTemperature(records)),
		"Humidity Range": fmt.Sprintf("%.2f%% - %.2f%%",
			findMinHumidity(records), findMaxHumidity(records)),
	}

	row := 1
	for key, value := range metadata {
		f.SetCellValue("Info", fmt.Sprintf("A%d", row), key)
		f.SetCellValue("Info", fmt.Sprintf("B%d", row), value)
		row++
	}
}

func findMinTemperature(records []models.Telemetry) float64 {
	if len(records) == 0 {
		return 0
	}
	min := records[0].Temperature
	for _, r := range records {
		if r.Temperature < min {
			min = r.Temperature
		}
	}
	return min
}

func findMaxTemperature(records []models.Telemetry) float64 {
	if len(records) == 0 {
		return 0
	}
	max := records[0].Temperature
	for _, r := range records {
		if r.Temperature > max {
			max = r.Temperature
		}
	}
	return max
}

func findMinHumidity(records []models.Telemetry) float64 {
	if len(records) == 0 {
		return 0
	}
	min := records[0].Humidity
	for _, r := range records {
		if r.Humidity < min {
			min = r.Humidity
		}
	}
	return min
}

func findMaxHumidity(records []models.Telemetry) float64 {
	if len(records) == 0 {
		return 0
	}
	max := records[0].Humidity
	for _, r := range records {
		if r.Humidity > max {
			max = r.Humidity
		}
	}
	return max
}

// SaveAsCSV сохраняет показания в CSV файл
func SaveAsCSV(filepath string, records []models.Telemetry) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ts_server", "ts_device", "device_id", "temperature", "humidity", "wifi_rssi", "free_heap"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			record.ServerTimestamp.Format(time.RFC3339),
			record.DeviceTimestamp.Format(time.RFC3339),
			record.DeviceID,
			fmt.Sprintf("%.2f", record.Temperature),
			fmt.Sprintf("%.2f", record.Humidity),
			formatOptional(record.WifiRSSI),
			formatOptional(record.FreeHeap),
		}

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

// SaveAsJSON сохраняет показания в JSON файл
func SaveAsJSON(filepath string, records []models.Telemetry) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func formatOptional(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *value)
}

// getConditionalFormatStyle создает стиль для условного форматирования
func getConditionalFormatStyle(f *excelize.File, color string) *int {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{color},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil
	}
	return &style
}
