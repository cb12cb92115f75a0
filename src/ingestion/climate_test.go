package ingestion

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
	"github.com/Frankl1sales/ArbovirusFramework2/src/transformations"
)

// writeRawStationFile grava um export bruto de estação no formato do INMET:
// latin-1, ';', dez linhas de metadados antes do cabeçalho.
func writeRawStationFile(t *testing.T, base, folder, name, table string) string {
	t.Helper()
	content := ""
	for i := 0; i < 10; i++ {
		content += "Nome;Estação Automática\n"
	}
	content += table
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(base, folder, RawClimateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(encoded), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

var stationMapping = []transformations.Rename{
	{From: "Data Medicao", To: "data"},
	{From: "PRECIPITACAO TOTAL, DIARIO(mm)", To: "precipitacao"},
	{From: "TEMPERATURA MEDIA, DIARIA(°C)", To: "temp_media"},
}

func TestProcessRawClimateData(t *testing.T) {
	base := t.TempDir()
	writeRawStationFile(t, base, "pelotas", "estacao_a.csv",
		"Data Medicao;PRECIPITACAO TOTAL, DIARIO(mm);TEMPERATURA MEDIA, DIARIA(°C)\n"+
			"2023-01-01;10.5;25.1234\n"+
			"2023-01-02;;24.0\n")

	written, skipped, err := ProcessRawClimateData(base, "pelotas",
		[]string{"estacao_a.csv", "nao_existe.csv"}, stationMapping)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 1 {
		t.Fatalf("gravados = %v, esperado 1 arquivo", written)
	}
	if len(skipped) != 1 || !strings.HasSuffix(skipped[0], "nao_existe.csv") {
		t.Fatalf("pulados = %v, esperado o arquivo inexistente", skipped)
	}

	proc, err := core.FromCSV(written[0], core.ReadOptions{Delimiter: ';', NaNValues: []string{""}})
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{"data", "precipitacao", "temp_media"}
	if !reflect.DeepEqual(proc.Columns(), wantCols) {
		t.Fatalf("colunas = %v, esperado %v", proc.Columns(), wantCols)
	}
	if got := proc.Col("temp_media").Float(); got[0] != 25.123 {
		t.Fatalf("temp_media[0] = %v, esperado 25.123 (arredondado a 3 casas)", got[0])
	}
}

func TestProcessRawClimateDataIsIdempotent(t *testing.T) {
	base := t.TempDir()
	writeRawStationFile(t, base, "pelotas", "estacao_a.csv",
		"Data Medicao;PRECIPITACAO TOTAL, DIARIO(mm);TEMPERATURA MEDIA, DIARIA(°C)\n"+
			"2023-01-01;10.5;25.1\n")

	written, _, err := ProcessRawClimateData(base, "pelotas", []string{"estacao_a.csv"}, stationMapping)
	if err != nil {
		t.Fatal(err)
	}
	firstRun, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := ProcessRawClimateData(base, "pelotas", []string{"estacao_a.csv"}, stationMapping); err != nil {
		t.Fatal(err)
	}
	secondRun, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(firstRun) != string(secondRun) {
		t.Fatal("reprocessar o mesmo arquivo bruto deveria produzir artefato idêntico")
	}
}

func writeProcessedFile(t *testing.T, base, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(base, folder, ProcessedClimate)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestAggregateAndTransformClimateData(t *testing.T) {
	base := t.TempDir()
	// Fora de ordem, com data repetida e uma data inválida.
	writeProcessedFile(t, base, "pelotas", "proc_a.csv",
		"data;precipitacao;temp_media\n"+
			"2023-01-03;3.0;22.0\n"+
			"2023-01-01;1.0;20.0\n"+
			"data ruim;9.9;9.9\n")
	writeProcessedFile(t, base, "pelotas", "proc_b.csv",
		"data;precipitacao;temp_media\n"+
			"2023-01-02;2.0;21.0\n"+
			"2023-01-01;111.0;111.0\n")

	df, ok, err := AggregateAndTransformClimateData(base, "pelotas")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("esperava série agregada")
	}

	dates := df.Col("date").Records()
	if want := []string{"2023-01-01", "2023-01-02", "2023-01-03"}; !reflect.DeepEqual(dates, want) {
		t.Fatalf("datas = %v, esperado %v (ordenadas, sem repetição, sem data inválida)", dates, want)
	}
	// A primeira ocorrência da data repetida vence.
	if got := df.Col("precipitacao").Float(); got[0] != 1.0 {
		t.Fatalf("precipitacao[2023-01-01] = %v, esperado 1.0", got[0])
	}

	for _, col := range []string{"precipitacao_soma_5d", "precipitacao_soma_15d", "temp_media_media_10d"} {
		if !df.HasColumn(col) {
			t.Fatalf("coluna de agregado móvel ausente: %s (colunas: %v)", col, df.Columns())
		}
	}
	if got := df.Col("precipitacao_soma_5d").Float(); !reflect.DeepEqual(got, []float64{1, 3, 6}) {
		t.Fatalf("precipitacao_soma_5d = %v, esperado [1 3 6]", got)
	}
	if !df.IsDateColumn("date") {
		t.Fatal("date deveria estar marcada como coluna de data")
	}
}

func TestAggregateClimateDataNoFiles(t *testing.T) {
	base := t.TempDir()

	if _, ok, err := AggregateAndTransformClimateData(base, "sem_pasta"); ok || err != nil {
		t.Fatalf("pasta inexistente: ok=%v err=%v, esperado ok=false sem erro", ok, err)
	}

	if err := os.MkdirAll(filepath.Join(base, "vazia", ProcessedClimate), 0755); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := AggregateAndTransformClimateData(base, "vazia"); ok || err != nil {
		t.Fatalf("pasta vazia: ok=%v err=%v, esperado ok=false sem erro", ok, err)
	}
}
