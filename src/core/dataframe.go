package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DateLayout é a forma canônica de data usada em todo o framework. Datas
// nessa forma ordenam cronologicamente quando comparadas como texto.
const DateLayout = "2006-01-02"

// ArbovirusDataFrame encapsula um dataframe.DataFrame da gota para simplificar
// a manipulação de datasets de arbovírus (embora genérico para CSVs).
//
// O wrapper tem semântica de valor: o construtor copia os dados recebidos e
// toda transformação devolve um novo handle, nunca mutando o original. Como a
// gota não possui um tipo de série para datas, o handle rastreia quais colunas
// carregam datas na forma canônica (ver ParseDates em transformations).
type ArbovirusDataFrame struct {
	df       dataframe.DataFrame
	dateCols map[string]bool
}

// New cria um ArbovirusDataFrame a partir de um DataFrame existente,
// garantindo que a cópia seja independente.
func New(df dataframe.DataFrame) *ArbovirusDataFrame {
	return &ArbovirusDataFrame{df: df.Copy(), dateCols: map[string]bool{}}
}

// ReadOptions descreve o contrato de leitura de um arquivo CSV bruto.
type ReadOptions struct {
	Delimiter rune     // separador de campos; padrão ','
	SkipLines int      // linhas de metadados a descartar antes do cabeçalho
	Latin1    bool     // decodifica o conteúdo de ISO-8859-1 para UTF-8
	NaNValues []string // tokens tratados como valor ausente
}

// FromCSV carrega um arquivo CSV em um ArbovirusDataFrame.
//
// Falha com ErrFileNotFound se o caminho não existir, ErrInvalidFileFormat se
// a extensão não for .csv e ErrInvalidCSV se o conteúdo estiver vazio ou
// violar o número de campos por linha.
func FromCSV(path string, opts ...ReadOptions) (*ArbovirusDataFrame, error) {
	var opt ReadOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = ','
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return nil, fmt.Errorf("%w: esperado '.csv', mas encontrado '%s'", ErrInvalidFileFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	var reader io.Reader = f
	if opt.Latin1 {
		reader = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	if opt.SkipLines > 0 {
		if reader, err = discardLines(reader, opt.SkipLines); err != nil {
			return nil, fmt.Errorf("%w: arquivo termina antes do cabeçalho: %s", ErrInvalidCSV, path)
		}
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: erro ao ler %s: %v", ErrInvalidCSV, path, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: arquivo vazio ou contém apenas cabeçalho: %s", ErrInvalidCSV, path)
	}

	loadOpts := []dataframe.LoadOption{
		dataframe.WithDelimiter(opt.Delimiter),
		dataframe.WithLazyQuotes(true),
	}
	if len(opt.NaNValues) > 0 {
		loadOpts = append(loadOpts, dataframe.NaNValues(opt.NaNValues))
	}

	df := dataframe.ReadCSV(bytes.NewReader(content), loadOpts...)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: erro ao analisar %s: %v", ErrInvalidCSV, path, df.Err)
	}
	return New(df), nil
}

// discardLines consome n linhas do leitor, devolvendo o restante.
func discardLines(r io.Reader, n int) (io.Reader, error) {
	br := bufio.NewReader(r)
	for i := 0; i < n; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, err
		}
	}
	return br, nil
}

// Derive cria um novo handle a partir de um DataFrame derivado deste,
// preservando a marcação de colunas de data que ainda existirem.
func (a *ArbovirusDataFrame) Derive(df dataframe.DataFrame) *ArbovirusDataFrame {
	out := New(df)
	for _, name := range out.df.Names() {
		if a.dateCols[name] {
			out.dateCols[name] = true
		}
	}
	return out
}

// WithDateColumns devolve um novo handle com as colunas informadas marcadas
// como colunas de data (já na forma canônica).
func (a *ArbovirusDataFrame) WithDateColumns(cols ...string) *ArbovirusDataFrame {
	out := a.Derive(a.df)
	for _, c := range cols {
		if out.HasColumn(c) {
			out.dateCols[c] = true
		}
	}
	return out
}

// IsDateColumn informa se a coluna foi marcada como coluna de data.
func (a *ArbovirusDataFrame) IsDateColumn(name string) bool {
	return a.dateCols[name]
}

// DataFrame devolve uma cópia defensiva do DataFrame subjacente. Quem chama
// nunca observa nem induz mutação do armazenamento interno do handle.
func (a *ArbovirusDataFrame) DataFrame() dataframe.DataFrame {
	return a.df.Copy()
}

// Columns devolve a lista de nomes de colunas.
func (a *ArbovirusDataFrame) Columns() []string {
	return a.df.Names()
}

// Shape devolve as dimensões (linhas, colunas).
func (a *ArbovirusDataFrame) Shape() (int, int) {
	return a.df.Nrow(), a.df.Ncol()
}

// Nrow devolve o número de linhas.
func (a *ArbovirusDataFrame) Nrow() int { return a.df.Nrow() }

// HasColumn informa se a coluna existe no handle.
func (a *ArbovirusDataFrame) HasColumn(name string) bool {
	for _, n := range a.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns devolve, na ordem pedida, os nomes que não existem no handle.
func (a *ArbovirusDataFrame) MissingColumns(names []string) []string {
	var missing []string
	for _, n := range names {
		if !a.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Col devolve uma cópia da série da coluna informada.
func (a *ArbovirusDataFrame) Col(name string) series.Series {
	return a.df.Col(name)
}

// Head devolve uma cópia das primeiras n linhas.
func (a *ArbovirusDataFrame) Head(n int) dataframe.DataFrame {
	if n > a.df.Nrow() {
		n = a.df.Nrow()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return a.df.Subset(idx)
}

// Records devolve todas as linhas como texto, incluindo o cabeçalho.
func (a *ArbovirusDataFrame) Records() [][]string {
	return a.df.Records()
}

// SelectColumns seleciona um subconjunto de colunas, preservando a ordem
// pedida. Falha com ColumnNotFoundError listando todas as colunas ausentes.
func (a *ArbovirusDataFrame) SelectColumns(names []string) (*ArbovirusDataFrame, error) {
	if missing := a.MissingColumns(names); len(missing) > 0 {
		return nil, NewColumnNotFound("seleção de colunas", missing...)
	}
	out := a.df.Select(names)
	if out.Err != nil {
		return nil, NewInvalidTransformation("", out.Err)
	}
	return a.Derive(out), nil
}

// RowPredicate recebe o DataFrame completo e devolve uma máscara booleana com
// uma posição por linha.
type RowPredicate func(df dataframe.DataFrame) ([]bool, error)

// FilterRows filtra linhas com base em um predicado sobre a tabela inteira.
//
// Um predicado que referencia coluna inexistente deve devolver (ou embrulhar)
// um ColumnNotFoundError; qualquer outra falha é tratada como transformação
// inválida, inclusive máscara de tamanho errado.
func (a *ArbovirusDataFrame) FilterRows(pred RowPredicate) (result *ArbovirusDataFrame, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, NewInvalidTransformation("", fmt.Errorf("pânico ao aplicar filtro: %v", r))
		}
	}()

	mask, err := pred(a.df.Copy())
	if err != nil {
		var cnf *ColumnNotFoundError
		if errors.As(err, &cnf) {
			return nil, err
		}
		return nil, NewInvalidTransformation("", err)
	}
	if len(mask) != a.df.Nrow() {
		return nil, NewInvalidTransformation("", fmt.Errorf(
			"máscara com %d posições para %d linhas", len(mask), a.df.Nrow()))
	}
	out := a.df.Subset(mask)
	if out.Err != nil {
		return nil, NewInvalidTransformation("", out.Err)
	}
	return a.Derive(out), nil
}

// Filter filtra linhas usando os comparadores nativos da gota. Os nomes de
// coluna referenciados são validados antes da execução.
func (a *ArbovirusDataFrame) Filter(filters ...dataframe.F) (*ArbovirusDataFrame, error) {
	var names []string
	for _, f := range filters {
		names = append(names, f.Colname)
	}
	if missing := a.MissingColumns(names); len(missing) > 0 {
		return nil, NewColumnNotFound("filtro de linhas", missing...)
	}
	out := a.df
	for _, f := range filters {
		out = out.Filter(f)
		if out.Err != nil {
			return nil, NewInvalidTransformation(f.Colname, out.Err)
		}
	}
	return a.Derive(out), nil
}

// LeftJoin junta este handle (lado primário) com b pelas colunas-chave,
// mantendo todas as linhas deste lado.
func (a *ArbovirusDataFrame) LeftJoin(b *ArbovirusDataFrame, keys ...string) (*ArbovirusDataFrame, error) {
	if missing := a.MissingColumns(keys); len(missing) > 0 {
		return nil, NewColumnNotFound("junção: lado climático", missing...)
	}
	if missing := b.MissingColumns(keys); len(missing) > 0 {
		return nil, NewColumnNotFound("junção: lado de casos", missing...)
	}
	out := a.df.LeftJoin(b.df, keys...)
	if out.Err != nil {
		return nil, NewInvalidTransformation("", out.Err)
	}
	joined := a.Derive(out)
	for _, name := range out.Names() {
		if b.dateCols[name] {
			joined.dateCols[name] = true
		}
	}
	return joined, nil
}

// SaveOptions descreve o formato de gravação de um artefato CSV.
type SaveOptions struct {
	Delimiter rune // separador de campos; padrão ','
	NoHeader  bool // omite a linha de cabeçalho
}

// SaveToCSV grava o handle em um arquivo CSV UTF-8, criando os diretórios
// pais conforme necessário. Valores ausentes são gravados como campo vazio e
// números de ponto flutuante na forma mais curta que os representa.
func (a *ArbovirusDataFrame) SaveToCSV(path string, opts ...SaveOptions) error {
	var opt SaveOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = ','
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: erro ao criar diretório para %s: %v", ErrFramework, path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: erro ao salvar o arquivo CSV em %s: %v", ErrFramework, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = opt.Delimiter

	names := a.df.Names()
	if !opt.NoHeader {
		if err := w.Write(names); err != nil {
			return fmt.Errorf("%w: erro ao salvar o arquivo CSV em %s: %v", ErrFramework, path, err)
		}
	}

	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = a.df.Col(name)
	}
	record := make([]string, len(names))
	for r := 0; r < a.df.Nrow(); r++ {
		for c := range cols {
			record[c] = formatElement(cols[c].Elem(r), cols[c].Type())
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("%w: erro ao salvar o arquivo CSV em %s: %v", ErrFramework, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: erro ao salvar o arquivo CSV em %s: %v", ErrFramework, path, err)
	}
	return nil
}

// formatElement serializa um elemento para CSV: ausentes viram campo vazio e
// floats usam a representação decimal mais curta.
func formatElement(e series.Element, t series.Type) string {
	if e.IsNA() {
		return ""
	}
	if t == series.Float {
		v := e.Float()
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return e.String()
}
