// Package pipeline orquestra o processamento ponta a ponta dos municípios
// configurados: normalização climática, agregação, contagem de notificações e
// combinação final, estritamente em sequência e na ordem da configuração.
package pipeline

import (
	"fmt"

	"github.com/Frankl1sales/ArbovirusFramework2/src/combination"
	"github.com/Frankl1sales/ArbovirusFramework2/src/config"
	"github.com/Frankl1sales/ArbovirusFramework2/src/ingestion"
	"github.com/Frankl1sales/ArbovirusFramework2/src/storage"
)

// Summary resume uma execução completa do pipeline.
type Summary struct {
	Processed int // municípios com tabela combinada gravada
	Skipped   int // municípios sem dados brutos suficientes
	Failed    int // municípios com falha de processamento
}

// Run processa todos os municípios da configuração, um por vez. Município sem
// dados é pulado e falha em um município não interrompe os demais; ambos ficam
// registrados no log e contados no resumo.
func Run(cfg *config.Config, logger *storage.Logger) Summary {
	var s Summary
	logger.Logf(storage.INFO, "iniciando pipeline para %d município(s)", len(cfg.Cities))

	for _, city := range cfg.Cities {
		ok, err := ProcessCity(cfg.BasePath, city, logger)
		switch {
		case err != nil:
			logger.Error(err.Error())
			s.Failed++
		case !ok:
			s.Skipped++
		default:
			s.Processed++
		}
	}

	logger.Logf(storage.INFO, "pipeline concluído: %d processado(s), %d pulado(s), %d com falha",
		s.Processed, s.Skipped, s.Failed)
	return s
}

// ProcessCity executa as quatro etapas para um único município. Devolve
// ok=false, sem erro, quando o município foi pulado por falta de dados brutos.
func ProcessCity(basePath string, city config.CityConfig, logger *storage.Logger) (bool, error) {
	logger.Logf(storage.INFO, "processando município %s (pasta %s)", city.MunicipioName, city.FolderName)

	written, skippedFiles, err := ingestion.ProcessRawClimateData(
		basePath, city.FolderName, city.RawClimateFiles, city.ColumnMapping)
	if err != nil {
		return false, fmt.Errorf("município %s: %w", city.MunicipioName, err)
	}
	for _, path := range skippedFiles {
		logger.Logf(storage.WARNING, "arquivo climático não encontrado, pulando: %s", path)
	}
	logger.Logf(storage.DEBUG, "%s: %d arquivo(s) climático(s) normalizado(s)", city.FolderName, len(written))

	climate, ok, err := ingestion.AggregateAndTransformClimateData(basePath, city.FolderName)
	if err != nil {
		return false, fmt.Errorf("município %s: %w", city.MunicipioName, err)
	}
	if !ok {
		logger.Logf(storage.INFO, "sem dados climáticos utilizáveis para %s, município pulado", city.MunicipioName)
		return false, nil
	}

	cases, ok, err := ingestion.ProcessEpidemiologicalData(
		basePath, city.FolderName, city.RawEpiFilename, city.IDMunicipio, city.MunicipioName)
	if err != nil {
		return false, fmt.Errorf("município %s: %w", city.MunicipioName, err)
	}
	if !ok {
		logger.Logf(storage.INFO, "arquivo de notificações não encontrado para %s, município pulado", city.MunicipioName)
		return false, nil
	}

	combined, err := combination.CombineClimateAndEpidemiologicalData(
		climate, cases, city.MunicipioName, city.FolderName, basePath, city.ExportExcel)
	if err != nil {
		return false, err
	}

	rows, cols := combined.Shape()
	logger.Logf(storage.INFO, "município %s processado: tabela combinada com %d linha(s) e %d coluna(s)",
		city.MunicipioName, rows, cols)
	return true, nil
}
