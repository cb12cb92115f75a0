package file

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/tealeg/xlsx"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
)

// ReadXLSXToDataFrame carrega uma planilha .xlsx em um ArbovirusDataFrame.
// sheetName vazio usa a primeira aba; a primeira linha da aba é o cabeçalho.
// Linhas mais curtas que o cabeçalho são completadas com valores ausentes.
func ReadXLSXToDataFrame(path, sheetName string) (*core.ArbovirusDataFrame, error) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
	}

	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: erro ao abrir planilha %s: %v", core.ErrInvalidFileFormat, path, err)
	}
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("%w: planilha sem abas: %s", core.ErrInvalidFileFormat, path)
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		var ok bool
		if sheet, ok = xlFile.Sheet[sheetName]; !ok {
			return nil, fmt.Errorf("%w: aba '%s' não existe em %s", core.ErrInvalidArgument, sheetName, path)
		}
	}
	if len(sheet.Rows) < 2 {
		return nil, fmt.Errorf("%w: planilha vazia ou contém apenas cabeçalho: %s", core.ErrInvalidCSV, path)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: planilha sem cabeçalho: %s", core.ErrInvalidCSV, path)
	}

	records := [][]string{headers}
	for _, row := range sheet.Rows[1:] {
		record := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) {
				record[i] = cell.Value
			}
		}
		records = append(records, record)
	}

	df := dataframe.LoadRecords(records)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: erro ao converter planilha %s: %v", core.ErrInvalidCSV, path, df.Err)
	}
	return core.New(df), nil
}
