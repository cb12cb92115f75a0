package config

import (
	"testing"
	"time"
)

const sampleConfig = `{
	"base_path": "./dados",
	"log_name": "arbovirus.log",
	"log_level": "debug",
	"log_max_size": "10 * 1024 * 1024",
	"schedule": "24h",
	"watch": true,
	"email": {
		"server": "imap.example.com:993",
		"username": "equipe@example.com",
		"password": "segredo",
		"target_subject": "Export SINAN",
		"check_interval": "30m"
	},
	"cidades": [
		{
			"id_municipio": 4314407,
			"municipio": "Pelotas",
			"pasta": "pelotas",
			"arquivo_casos": "casos.csv",
			"arquivos_climaticos": ["estacao_a.csv", "estacao_b.csv"],
			"mapeamento_colunas": [
				{"from": "Data Medicao", "to": "data"},
				{"from": "PRECIPITACAO TOTAL, DIARIO(mm)", "to": "precipitacao"}
			],
			"exportar_excel": true
		}
	]
}`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.BasePath != "./dados" {
		t.Fatalf("BasePath = %s", cfg.BasePath)
	}
	if time.Duration(cfg.Schedule) != 24*time.Hour {
		t.Fatalf("Schedule = %v, esperado 24h", time.Duration(cfg.Schedule))
	}
	if time.Duration(cfg.Email.CheckInterval) != 30*time.Minute {
		t.Fatalf("CheckInterval = %v, esperado 30m", time.Duration(cfg.Email.CheckInterval))
	}

	if len(cfg.Cities) != 1 {
		t.Fatalf("cidades = %d, esperado 1", len(cfg.Cities))
	}
	city := cfg.Cities[0]
	if city.IDMunicipio != 4314407 || city.FolderName != "pelotas" {
		t.Fatalf("cidade = %+v", city)
	}
	// A ordem dos pares de renomeação precisa ser preservada.
	if city.ColumnMapping[0].To != "data" || city.ColumnMapping[1].To != "precipitacao" {
		t.Fatalf("mapeamento fora de ordem: %+v", city.ColumnMapping)
	}
	if !city.ExportExcel {
		t.Fatal("exportar_excel deveria estar ligado")
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"sem base_path", `{"cidades": []}`},
		{"cidade sem pasta", `{"base_path": "d", "cidades": [{"municipio": "X"}]}`},
		{"pasta repetida", `{"base_path": "d", "cidades": [{"pasta": "a"}, {"pasta": "a"}]}`},
		{"json quebrado", `{"base_path": `},
		{"duração inválida", `{"base_path": "d", "schedule": "um dia"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.json)); err == nil {
				t.Fatal("esperava erro de configuração")
			}
		})
	}
}
