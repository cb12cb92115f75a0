package combination

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-gota/gota/dataframe"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
	"github.com/Frankl1sales/ArbovirusFramework2/src/ingestion"
)

func climateFixture(t *testing.T) *core.ArbovirusDataFrame {
	t.Helper()
	df := dataframe.LoadRecords([][]string{
		{"date", "precipitacao", "temp_media"},
		{"2023-01-01", "1.0", "20.0"},
		{"2023-01-02", "2.0", "21.0"},
		{"2023-01-03", "3.0", "22.0"},
		{"2023-01-04", "4.0", "23.0"},
	})
	if df.Err != nil {
		t.Fatal(df.Err)
	}
	return core.New(df)
}

func casesFixture(t *testing.T) *core.ArbovirusDataFrame {
	t.Helper()
	df := dataframe.LoadRecords([][]string{
		{"dt_notific", "mun", "quantidade_de_casos"},
		{"2023-01-02", "Pelotas", "5"},
		{"2023-01-04", "Pelotas", "7"},
		{"2023-01-02", "Outra Cidade", "99"},
	})
	if df.Err != nil {
		t.Fatal(df.Err)
	}
	return core.New(df)
}

func TestCombineClimateAndEpidemiologicalData(t *testing.T) {
	base := t.TempDir()

	out, err := CombineClimateAndEpidemiologicalData(
		climateFixture(t), casesFixture(t), "Pelotas", "pelotas", base, false)
	if err != nil {
		t.Fatal(err)
	}

	// Toda linha climática sobrevive à junção; dia sem notificação vale zero.
	if out.Nrow() != 4 {
		t.Fatalf("linhas = %d, esperado 4", out.Nrow())
	}
	casos := out.Col(ingestion.ColCaseCount).Records()
	if want := []string{"0", "5", "0", "7"}; !reflect.DeepEqual(casos, want) {
		t.Fatalf("quantidade_de_casos = %v, esperado %v", casos, want)
	}

	for _, col := range []string{
		"quantidade_de_casos_7dias",
		"quantidade_de_casos_14dias",
		"quantidade_de_casos_21dias",
		"estacao",
	} {
		if !out.HasColumn(col) {
			t.Fatalf("coluna ausente na tabela combinada: %s (colunas: %v)", col, out.Columns())
		}
	}
	if got := out.Col("estacao").Records()[0]; got != "Verão" {
		t.Fatalf("estacao[0] = %s, esperado Verão", got)
	}

	artifact := filepath.Join(base, "pelotas", ingestion.CombinedDir, "dados_combinados_pelotas.csv")
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artefato combinado não gravado em %s: %v", artifact, err)
	}
}

func TestCombineFiltersForeignMunicipality(t *testing.T) {
	base := t.TempDir()

	out, err := CombineClimateAndEpidemiologicalData(
		climateFixture(t), casesFixture(t), "Pelotas", "pelotas", base, false)
	if err != nil {
		t.Fatal(err)
	}
	// A notificação de Outra Cidade em 2023-01-02 não pode vazar.
	if got := out.Col(ingestion.ColCaseCount).Records()[1]; got != "5" {
		t.Fatalf("quantidade_de_casos[2023-01-02] = %s, esperado 5", got)
	}
}

func TestCombineWrapsFailureWithCity(t *testing.T) {
	base := t.TempDir()
	noDate := core.New(dataframe.LoadRecords([][]string{
		{"precipitacao"},
		{"1.0"},
	}))

	_, err := CombineClimateAndEpidemiologicalData(
		noDate, casesFixture(t), "Pelotas", "pelotas", base, false)
	var dpe *core.DataProcessingError
	if !errors.As(err, &dpe) {
		t.Fatalf("erro = %v, esperado DataProcessingError", err)
	}
	if dpe.City != "Pelotas" {
		t.Fatalf("cidade = %s, esperado Pelotas", dpe.City)
	}
	var cnf *core.ColumnNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("causa = %v, esperado ColumnNotFoundError embrulhado", err)
	}
}

func TestCombineExportsExcelWhenAsked(t *testing.T) {
	base := t.TempDir()

	if _, err := CombineClimateAndEpidemiologicalData(
		climateFixture(t), casesFixture(t), "Pelotas", "pelotas", base, true); err != nil {
		t.Fatal(err)
	}

	xlsxPath := filepath.Join(base, "pelotas", ingestion.CombinedDir, "dados_combinados_pelotas.xlsx")
	if _, err := os.Stat(xlsxPath); err != nil {
		t.Fatalf("planilha não gravada em %s: %v", xlsxPath, err)
	}
}
