// Package utils concentra auxiliares pequenos compartilhados pelos demais
// pacotes.
package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
)

// Contains informa se v está presente em items.
func Contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// SaveToExcel grava o conteúdo do handle como planilha .xlsx, criando os
// diretórios pais conforme necessário. A primeira linha é o cabeçalho.
func SaveToExcel(a *core.ArbovirusDataFrame, path, sheetName string) error {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: erro ao criar diretório para %s: %v", core.ErrFramework, path, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		idx, err := f.NewSheet(sheetName)
		if err != nil {
			return fmt.Errorf("%w: erro ao criar planilha %s: %v", core.ErrFramework, sheetName, err)
		}
		f.SetActiveSheet(idx)
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("%w: erro ao preparar planilha %s: %v", core.ErrFramework, sheetName, err)
		}
	}

	for r, row := range a.Records() {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("%w: erro ao montar planilha %s: %v", core.ErrFramework, path, err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("%w: erro ao montar planilha %s: %v", core.ErrFramework, path, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: erro ao salvar planilha em %s: %v", core.ErrFramework, path, err)
	}
	return nil
}
