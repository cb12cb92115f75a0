// Package config carrega a configuração JSON da aplicação: parâmetros gerais
// do pipeline e a lista ordenada de municípios a processar.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Frankl1sales/ArbovirusFramework2/src/transformations"
)

// Config é a configuração completa da aplicação.
type Config struct {
	BasePath   string   `json:"base_path"`    // raiz da árvore de dados dos municípios
	LogName    string   `json:"log_name"`     // caminho do arquivo de log
	LogLevel   string   `json:"log_level"`    // nível mínimo: debug, info, warning, error
	LogMaxSize string   `json:"log_max_size"` // ex.: "10 * 1024 * 1024"
	Schedule   Duration `json:"schedule"`     // intervalo de reexecução; zero desliga
	Watch      bool     `json:"watch"`        // observa as pastas de dados climáticos

	Email  EmailConfig  `json:"email"`
	Cities []CityConfig `json:"cidades"`
}

// EmailConfig descreve a caixa IMAP de onde baixar os exports de notificação
// enviados pela secretaria de saúde. Server vazio desliga a busca.
type EmailConfig struct {
	Server        string   `json:"server"`
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	TargetSubject string   `json:"target_subject"` // assunto que identifica os exports
	CheckInterval Duration `json:"check_interval"`
}

// CityConfig descreve um município a processar. Os municípios são processados
// na ordem em que aparecem no arquivo.
type CityConfig struct {
	IDMunicipio     int                      `json:"id_municipio"`        // código IBGE
	MunicipioName   string                   `json:"municipio"`           // nome de exibição
	FolderName      string                   `json:"pasta"`               // subpasta em BasePath
	RawEpiFilename  string                   `json:"arquivo_casos"`       // export bruto de notificações
	RawClimateFiles []string                 `json:"arquivos_climaticos"` // exports brutos de estação
	ColumnMapping   []transformations.Rename `json:"mapeamento_colunas"`  // renomeações climáticas, ordenadas
	ExportExcel     bool                     `json:"exportar_excel"`
}

var (
	once     sync.Once
	instance *Config
)

// LoadConfig carrega a configuração do caminho informado uma única vez;
// chamadas seguintes devolvem a mesma instância.
func LoadConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance, err = parseFile(path)
	})
	if instance == nil && err == nil {
		err = fmt.Errorf("configuração não carregada")
	}
	return instance, err
}

// Parse carrega uma configuração avulsa, sem passar pelo singleton. Útil em
// testes e ferramentas.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("falha ao analisar a configuração: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("não foi possível ler o arquivo de configuração %s: %w", path, err)
	}
	return Parse(data)
}

func (c *Config) validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("configuração inválida: 'base_path' é obrigatório")
	}
	seen := map[string]bool{}
	for i, city := range c.Cities {
		if city.FolderName == "" {
			return fmt.Errorf("configuração inválida: cidade %d sem 'pasta'", i)
		}
		if seen[city.FolderName] {
			return fmt.Errorf("configuração inválida: 'pasta' repetida: %s", city.FolderName)
		}
		seen[city.FolderName] = true
	}
	return nil
}

// Duration embrulha time.Duration para aceitar a forma textual ("30m", "24h")
// no JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
