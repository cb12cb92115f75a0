// Package ingestion lê os arquivos brutos de cada município e os converte em
// séries diárias prontas para a combinação: os exports de estação
// meteorológica em ingestão climática e os exports de notificação de doenças
// em ingestão epidemiológica.
package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
	"github.com/Frankl1sales/ArbovirusFramework2/src/transformations"
)

// Subpastas fixas da árvore de dados de cada município.
const (
	RawClimateDir      = "dados_climaticos"
	ProcessedClimate   = "processed_climate"
	RawEpiDir          = "dados_epidemiologicos"
	ProcessedEpiDir    = "processed_epidemiological"
	CombinedDir        = "dados_combinados"
	processedPrefix    = "proc_"
	rawClimateSkip     = 10
	rawClimateDecimals = 3
)

// Tokens tratados como ausentes nos exports brutos de estação meteorológica.
var rawClimateNaN = []string{"", ".", "NA"}

// climateColumns são as colunas esperadas na série climática agregada, na
// ordem dos artefatos. A primeira é a data; as demais são numéricas.
var climateColumns = []string{
	"date",
	"precipitacao",
	"ponto_orvalho",
	"temp_media",
	"temp_max",
	"temp_min",
	"umidade",
}

// rollingWindows são as janelas, em dias, dos agregados móveis climáticos.
var rollingWindows = []int{5, 10, 15}

// ProcessRawClimateData normaliza os exports brutos de estação meteorológica
// de um município: cada arquivo listado é lido de
// {base}/{pasta}/dados_climaticos (latin-1, ';', dez linhas de metadados antes
// do cabeçalho), tem as colunas renomeadas conforme os pares informados,
// mantém apenas as colunas de destino do mapeamento, é arredondado a três
// casas e gravado como {base}/{pasta}/processed_climate/proc_{nome} (';',
// UTF-8).
//
// Arquivos listados mas inexistentes não interrompem a normalização: voltam na
// segunda lista para quem chama registrar. A operação é idempotente — rodar de
// novo sobrescreve os mesmos artefatos com o mesmo conteúdo.
func ProcessRawClimateData(basePath, cityFolder string, rawFiles []string, columnMapping []transformations.Rename) (written, skipped []string, err error) {
	rawDir := filepath.Join(basePath, cityFolder, RawClimateDir)
	outDir := filepath.Join(basePath, cityFolder, ProcessedClimate)

	for _, name := range rawFiles {
		path := filepath.Join(rawDir, name)
		df, err := core.FromCSV(path, core.ReadOptions{
			Delimiter: ';',
			SkipLines: rawClimateSkip,
			Latin1:    true,
			NaNValues: rawClimateNaN,
		})
		if errors.Is(err, core.ErrFileNotFound) {
			skipped = append(skipped, path)
			continue
		}
		if err != nil {
			return written, skipped, fmt.Errorf("normalização climática de %s: %w", path, err)
		}

		// Só renomeia os pares cuja origem existe neste arquivo; exports de
		// estações diferentes variam nas colunas presentes.
		var renames []transformations.Rename
		var targets []string
		for _, r := range columnMapping {
			if df.HasColumn(r.From) {
				renames = append(renames, r)
				targets = append(targets, r.To)
			}
		}
		if df, err = transformations.RenameColumns(df, renames); err != nil {
			return written, skipped, fmt.Errorf("normalização climática de %s: %w", path, err)
		}
		if df, err = df.SelectColumns(targets); err != nil {
			return written, skipped, fmt.Errorf("normalização climática de %s: %w", path, err)
		}
		if df, err = transformations.RoundNumericColumns(df, rawClimateDecimals); err != nil {
			return written, skipped, fmt.Errorf("normalização climática de %s: %w", path, err)
		}

		outPath := filepath.Join(outDir, processedPrefix+name)
		if err = df.SaveToCSV(outPath, core.SaveOptions{Delimiter: ';'}); err != nil {
			return written, skipped, err
		}
		written = append(written, outPath)
	}
	return written, skipped, nil
}

// AggregateAndTransformClimateData concatena os arquivos normalizados de
// processed_climate em uma série diária única: ordena por data, remove datas
// inválidas e repetidas (primeira ocorrência vence), coage as medidas para
// ponto flutuante e adiciona os agregados móveis de 5, 10 e 15 dias — soma
// para precipitação, média para as demais medidas — arredondados a três casas.
//
// Devolve ok=false, sem erro, quando não há arquivos normalizados ou nenhuma
// linha com data utilizável: município sem dados climáticos é pulado, não é
// falha.
func AggregateAndTransformClimateData(basePath, cityFolder string) (*core.ArbovirusDataFrame, bool, error) {
	procDir := filepath.Join(basePath, cityFolder, ProcessedClimate)
	entries, err := os.ReadDir(procDir)
	if err != nil {
		return nil, false, nil
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, processedPrefix) && strings.HasSuffix(name, ".csv") {
			paths = append(paths, filepath.Join(procDir, name))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, false, nil
	}

	var combined dataframe.DataFrame
	first := true
	for _, path := range paths {
		part, err := loadNormalizedClimate(path)
		if err != nil {
			return nil, false, err
		}
		if first {
			combined = part
			first = false
			continue
		}
		combined = combined.RBind(part)
		if combined.Err != nil {
			return nil, false, core.NewInvalidTransformation("", fmt.Errorf(
				"concatenação de %s: %v", path, combined.Err))
		}
	}

	df := core.New(combined)
	if df, err = transformations.ParseDates(df, "date"); err != nil {
		return nil, false, err
	}
	if df, err = transformations.DropMissingValues(df, []string{"date"}, "any"); err != nil {
		return nil, false, err
	}
	if df.Nrow() == 0 {
		return nil, false, nil
	}

	sorted := df.DataFrame().Arrange(dataframe.Sort("date"))
	if sorted.Err != nil {
		return nil, false, core.NewInvalidTransformation("date", sorted.Err)
	}
	df = df.Derive(sorted)

	if df, err = transformations.DropDuplicates(df, []string{"date"}, "first"); err != nil {
		return nil, false, err
	}

	for _, col := range climateColumns[1:] {
		for _, w := range rollingWindows {
			if col == "precipitacao" {
				df, err = transformations.CalculateRollingSum(df, col, w)
			} else {
				df, err = transformations.CalculateRollingMean(df, col, w)
			}
			if err != nil {
				return nil, false, err
			}
		}
	}
	if df, err = transformations.RoundNumericColumns(df, rawClimateDecimals); err != nil {
		return nil, false, err
	}
	return df, true, nil
}

// loadNormalizedClimate lê um arquivo proc_*.csv e o alinha ao esquema
// esperado: colunas faltantes entram como ausentes e as medidas viram ponto
// flutuante, para que arquivos de estações distintas concatenem sem conflito
// de tipo.
func loadNormalizedClimate(path string) (dataframe.DataFrame, error) {
	a, err := core.FromCSV(path, core.ReadOptions{Delimiter: ';', NaNValues: []string{""}})
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("agregação climática de %s: %w", path, err)
	}
	if a.HasColumn("data") && !a.HasColumn("date") {
		if a, err = transformations.RenameColumns(a, []transformations.Rename{{From: "data", To: "date"}}); err != nil {
			return dataframe.DataFrame{}, err
		}
	}

	df := a.DataFrame()
	nrow := df.Nrow()
	for _, col := range climateColumns {
		if !a.HasColumn(col) {
			df = df.Mutate(missingColumn(col, nrow))
			if df.Err != nil {
				return dataframe.DataFrame{}, core.NewInvalidTransformation(col, df.Err)
			}
		}
	}

	out := df.Select(climateColumns)
	if out.Err != nil {
		return dataframe.DataFrame{}, core.NewInvalidTransformation("", out.Err)
	}
	for _, col := range climateColumns[1:] {
		s := out.Col(col)
		if s.Type() != series.Float {
			out = out.Mutate(series.New(s.Float(), series.Float, col))
			if out.Err != nil {
				return dataframe.DataFrame{}, core.NewInvalidTransformation(col, out.Err)
			}
		}
	}
	return out, nil
}

// missingColumn cria uma coluna inteiramente ausente do tipo adequado.
func missingColumn(name string, nrow int) series.Series {
	vals := make([]string, nrow)
	for i := range vals {
		vals[i] = "NaN"
	}
	if name == "date" {
		return series.New(vals, series.String, name)
	}
	return series.New(vals, series.Float, name)
}
