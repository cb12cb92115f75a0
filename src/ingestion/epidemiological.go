package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
	"github.com/Frankl1sales/ArbovirusFramework2/src/datasource/file"
	"github.com/Frankl1sales/ArbovirusFramework2/src/transformations"
)

// Colunas do export bruto de notificações usadas pelo framework.
const (
	ColDateNotification = "dt_notific"
	ColMunicipalityID   = "id_municip"
	ColMunicipality     = "mun"
	ColCaseCount        = "quantidade_de_casos"
)

// ProcessEpidemiologicalData conta as notificações diárias de um município a
// partir do export bruto em {base}/{pasta}/dados_epidemiologicos/{arquivo}.
//
// Mantém apenas dt_notific e id_municip (ColumnNotFoundError lista as
// ausentes), filtra pelo código IBGE do município, carimba a coluna 'mun' com
// o nome de exibição, descarta notificações sem data válida e agrega por
// (dt_notific, mun) contando linhas em 'quantidade_de_casos'. A série contada,
// ordenada por data, é gravada em processed_epidemiological/casos_{pasta}.csv.
//
// Exports .xlsx são aceitos além de .csv. Arquivo bruto inexistente devolve
// ok=false sem erro; export sem nenhuma notificação do município devolve a
// série vazia com ok=true, para que a combinação preencha os dias com zero.
func ProcessEpidemiologicalData(basePath, cityFolder, rawFilename string, idMunicipio int, municipioName string) (*core.ArbovirusDataFrame, bool, error) {
	path := filepath.Join(basePath, cityFolder, RawEpiDir, rawFilename)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, false, nil
	}

	var a *core.ArbovirusDataFrame
	var err error
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		a, err = file.ReadXLSXToDataFrame(path, "")
	} else {
		a, err = core.FromCSV(path, core.ReadOptions{Delimiter: ';'})
	}
	if err != nil {
		return nil, false, fmt.Errorf("ingestão epidemiológica de %s: %w", path, err)
	}

	if a, err = a.SelectColumns([]string{ColDateNotification, ColMunicipalityID}); err != nil {
		return nil, false, err
	}
	if a, err = a.Filter(dataframe.F{
		Colname:    ColMunicipalityID,
		Comparator: series.Eq,
		Comparando: idMunicipio,
	}); err != nil {
		return nil, false, err
	}
	if a, err = transformations.CreateNewColumn(a, ColMunicipality, func(df dataframe.DataFrame) series.Series {
		names := make([]string, df.Nrow())
		for i := range names {
			names[i] = municipioName
		}
		return series.New(names, series.String, ColMunicipality)
	}); err != nil {
		return nil, false, err
	}
	if a, err = transformations.ParseDates(a, ColDateNotification); err != nil {
		return nil, false, err
	}
	if a, err = transformations.DropMissingValues(a, []string{ColDateNotification}, "any"); err != nil {
		return nil, false, err
	}

	var counted *core.ArbovirusDataFrame
	if a.Nrow() == 0 {
		counted = emptyCaseSeries()
	} else if counted, err = countCases(a); err != nil {
		return nil, false, err
	}

	outPath := filepath.Join(basePath, cityFolder, ProcessedEpiDir, "casos_"+cityFolder+".csv")
	if err = counted.SaveToCSV(outPath); err != nil {
		return nil, false, err
	}
	return counted, true, nil
}

// countCases agrega as notificações por (data, município), contando linhas.
func countCases(a *core.ArbovirusDataFrame) (*core.ArbovirusDataFrame, error) {
	df := a.DataFrame()
	grouped := df.GroupBy(ColDateNotification, ColMunicipality)
	if grouped.Err != nil {
		return nil, core.NewInvalidTransformation(ColDateNotification, grouped.Err)
	}
	counts := grouped.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT},
		[]string{ColMunicipalityID},
	)
	if counts.Err != nil {
		return nil, core.NewInvalidTransformation(ColMunicipalityID, counts.Err)
	}

	counts = counts.Rename(ColCaseCount, ColMunicipalityID+"_COUNT")
	if counts.Err != nil {
		return nil, core.NewInvalidTransformation(ColCaseCount, counts.Err)
	}

	// A contagem da gota sai como ponto flutuante; casos são inteiros.
	floats := counts.Col(ColCaseCount).Float()
	ints := make([]int, len(floats))
	for i, v := range floats {
		ints[i] = int(v)
	}
	counts = counts.Mutate(series.New(ints, series.Int, ColCaseCount))
	if counts.Err != nil {
		return nil, core.NewInvalidTransformation(ColCaseCount, counts.Err)
	}

	ordered := counts.
		Select([]string{ColDateNotification, ColMunicipality, ColCaseCount}).
		Arrange(dataframe.Sort(ColDateNotification))
	if ordered.Err != nil {
		return nil, core.NewInvalidTransformation(ColDateNotification, ordered.Err)
	}
	return a.Derive(ordered), nil
}

// emptyCaseSeries devolve a série contada vazia, com o esquema completo.
func emptyCaseSeries() *core.ArbovirusDataFrame {
	df := dataframe.New(
		series.New([]string{}, series.String, ColDateNotification),
		series.New([]string{}, series.String, ColMunicipality),
		series.New([]int{}, series.Int, ColCaseCount),
	)
	return core.New(df).WithDateColumns(ColDateNotification)
}
