package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
)

func writeRawEpiFile(t *testing.T, base, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(base, folder, RawEpiDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessEpidemiologicalData(t *testing.T) {
	base := t.TempDir()
	// Duas notificações no mesmo dia, uma em outro dia, uma de outro
	// município e uma sem data válida.
	writeRawEpiFile(t, base, "pelotas", "casos.csv",
		"dt_notific;id_municip;cs_sexo\n"+
			"2023-02-10;4314407;F\n"+
			"2023-02-10;4314407;M\n"+
			"2023-02-12;4314407;F\n"+
			"2023-02-10;4300001;F\n"+
			"sem data;4314407;M\n")

	df, ok, err := ProcessEpidemiologicalData(base, "pelotas", "casos.csv", 4314407, "Pelotas")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("esperava série de casos")
	}

	wantCols := []string{ColDateNotification, ColMunicipality, ColCaseCount}
	if !reflect.DeepEqual(df.Columns(), wantCols) {
		t.Fatalf("colunas = %v, esperado %v", df.Columns(), wantCols)
	}
	if got := df.Col(ColDateNotification).Records(); !reflect.DeepEqual(got, []string{"2023-02-10", "2023-02-12"}) {
		t.Fatalf("datas = %v, esperado [2023-02-10 2023-02-12]", got)
	}
	if got := df.Col(ColCaseCount).Records(); !reflect.DeepEqual(got, []string{"2", "1"}) {
		t.Fatalf("quantidade_de_casos = %v, esperado [2 1]", got)
	}
	if got := df.Col(ColMunicipality).Records()[0]; got != "Pelotas" {
		t.Fatalf("mun = %s, esperado Pelotas", got)
	}

	savedPath := filepath.Join(base, "pelotas", ProcessedEpiDir, "casos_pelotas.csv")
	if _, err := os.Stat(savedPath); err != nil {
		t.Fatalf("artefato contado não gravado em %s: %v", savedPath, err)
	}
}

func TestProcessEpidemiologicalDataMissingFile(t *testing.T) {
	base := t.TempDir()

	df, ok, err := ProcessEpidemiologicalData(base, "pelotas", "casos.csv", 4314407, "Pelotas")
	if err != nil {
		t.Fatalf("arquivo ausente deveria ser pulado sem erro, veio %v", err)
	}
	if ok || df != nil {
		t.Fatal("arquivo ausente deveria devolver ok=false")
	}
}

func TestProcessEpidemiologicalDataMissingColumns(t *testing.T) {
	base := t.TempDir()
	writeRawEpiFile(t, base, "pelotas", "casos.csv", "outra;coluna\n1;2\n")

	_, _, err := ProcessEpidemiologicalData(base, "pelotas", "casos.csv", 4314407, "Pelotas")
	var cnf *core.ColumnNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("erro = %v, esperado ColumnNotFoundError", err)
	}
	want := []string{ColDateNotification, ColMunicipalityID}
	if !reflect.DeepEqual(cnf.Columns, want) {
		t.Fatalf("ausentes = %v, esperado %v", cnf.Columns, want)
	}
}

func TestProcessEpidemiologicalDataNoMatchingRows(t *testing.T) {
	base := t.TempDir()
	writeRawEpiFile(t, base, "pelotas", "casos.csv",
		"dt_notific;id_municip\n2023-02-10;4300001\n")

	df, ok, err := ProcessEpidemiologicalData(base, "pelotas", "casos.csv", 4314407, "Pelotas")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("export sem casos do município ainda é ok=true")
	}
	if df.Nrow() != 0 {
		t.Fatalf("linhas = %d, esperado série vazia", df.Nrow())
	}
	if !df.IsDateColumn(ColDateNotification) {
		t.Fatal("a série vazia deveria manter dt_notific como coluna de data")
	}
}
