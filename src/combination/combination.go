// Package combination funde a série climática diária com a série de casos
// notificados de um município na tabela final de análise.
package combination

import (
	"fmt"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
	"github.com/Frankl1sales/ArbovirusFramework2/src/ingestion"
	"github.com/Frankl1sales/ArbovirusFramework2/src/transformations"
	"github.com/Frankl1sales/ArbovirusFramework2/src/utils"
)

// Janelas, em dias, dos adiantamentos de casos na tabela combinada.
var shiftDays = []int{7, 14, 21}

// CombineClimateAndEpidemiologicalData produz a tabela final do município:
// junção à esquerda da série climática (lado primário, uma linha por dia) com
// a série de casos por dt_notific, dias sem notificação preenchidos com zero,
// casos adiantados em 7, 14 e 21 dias de calendário, estação do ano e valores
// arredondados a três casas. O resultado é gravado em
// {base}/{pasta}/dados_combinados/dados_combinados_{pasta}.csv e, quando
// exportExcel está ligado, também como planilha .xlsx de mesmo nome.
//
// Qualquer falha volta embrulhada em DataProcessingError com o nome do
// município afetado.
func CombineClimateAndEpidemiologicalData(climate, cases *core.ArbovirusDataFrame, municipioName, cityFolder, basePath string, exportExcel bool) (*core.ArbovirusDataFrame, error) {
	fail := func(err error) (*core.ArbovirusDataFrame, error) {
		return nil, &core.DataProcessingError{City: municipioName, Err: err}
	}

	if !climate.HasColumn("date") {
		return fail(core.NewColumnNotFound("combinação: lado climático", "date"))
	}
	if !cases.HasColumn(ingestion.ColDateNotification) {
		return fail(core.NewColumnNotFound("combinação: lado de casos", ingestion.ColDateNotification))
	}

	climate, err := transformations.ParseDates(climate, "date")
	if err != nil {
		return fail(err)
	}
	if cases, err = transformations.ParseDates(cases, ingestion.ColDateNotification); err != nil {
		return fail(err)
	}
	if climate, err = transformations.RenameColumns(climate, []transformations.Rename{
		{From: "date", To: ingestion.ColDateNotification},
	}); err != nil {
		return fail(err)
	}

	// Refiltra por município antes da junção: o arquivo de casos pode ter
	// sido gravado por uma execução com configuração diferente.
	if cases.Nrow() > 0 {
		if cases, err = cases.Filter(dataframe.F{
			Colname:    ingestion.ColMunicipality,
			Comparator: series.Eq,
			Comparando: municipioName,
		}); err != nil {
			return fail(err)
		}
	}
	if cases, err = cases.SelectColumns([]string{ingestion.ColDateNotification, ingestion.ColCaseCount}); err != nil {
		return fail(err)
	}

	combined, err := climate.LeftJoin(cases, ingestion.ColDateNotification)
	if err != nil {
		return fail(err)
	}
	if combined, err = zeroFillCases(combined); err != nil {
		return fail(err)
	}

	sorted := combined.DataFrame().Arrange(dataframe.Sort(ingestion.ColDateNotification))
	if sorted.Err != nil {
		return fail(core.NewInvalidTransformation(ingestion.ColDateNotification, sorted.Err))
	}
	combined = combined.Derive(sorted)

	for _, days := range shiftDays {
		if combined, err = transformations.ShiftCases(combined, ingestion.ColDateNotification, ingestion.ColCaseCount, days); err != nil {
			return fail(err)
		}
	}
	if combined, err = transformations.AddSeasonColumn(combined, ingestion.ColDateNotification); err != nil {
		return fail(err)
	}
	if combined, err = transformations.RoundNumericColumns(combined, 3); err != nil {
		return fail(err)
	}

	outPath := filepath.Join(basePath, cityFolder, ingestion.CombinedDir,
		"dados_combinados_"+cityFolder+".csv")
	if err = combined.SaveToCSV(outPath); err != nil {
		return fail(err)
	}
	if exportExcel {
		if err = exportCombinedExcel(combined, outPath); err != nil {
			return fail(err)
		}
	}
	return combined, nil
}

// zeroFillCases troca as contagens ausentes deixadas pela junção por zero e
// garante o tipo inteiro da coluna de casos.
func zeroFillCases(a *core.ArbovirusDataFrame) (*core.ArbovirusDataFrame, error) {
	df := a.DataFrame()
	floats := df.Col(ingestion.ColCaseCount).Float()
	ints := make([]int, len(floats))
	for i, v := range floats {
		if v == v { // não-NaN
			ints[i] = int(v)
		}
	}
	out := df.Mutate(series.New(ints, series.Int, ingestion.ColCaseCount))
	if out.Err != nil {
		return nil, core.NewInvalidTransformation(ingestion.ColCaseCount, out.Err)
	}
	return a.Derive(out), nil
}

// exportCombinedExcel grava a tabela combinada também como .xlsx, ao lado do
// artefato CSV.
func exportCombinedExcel(a *core.ArbovirusDataFrame, csvPath string) error {
	xlsxPath := csvPath[:len(csvPath)-len(filepath.Ext(csvPath))] + ".xlsx"
	if err := utils.SaveToExcel(a, xlsxPath, "dados_combinados"); err != nil {
		return fmt.Errorf("exportação para Excel: %w", err)
	}
	return nil
}
