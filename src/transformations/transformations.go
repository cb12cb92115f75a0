// Package transformations reúne as transformações puras sobre
// ArbovirusDataFrame: cada função recebe um handle (e parâmetros) e devolve
// um handle novo, deixando a entrada intacta.
//
// Toda transformação valida os nomes de colunas referenciados antes de
// computar, levantando ColumnNotFoundError com TODAS as colunas ausentes;
// falhas de cálculo são embrulhadas como InvalidTransformationError com a
// coluna ofensora na mensagem.
package transformations

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/Frankl1sales/ArbovirusFramework2/src/core"
)

// Rename descreve um par de renomeação de coluna. Usa-se uma lista ordenada,
// e não um mapa, para que a ordem das colunas nos artefatos seja estável.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Estratégias aceitas por FillMissingValues.
const (
	FillMean   = "mean"
	FillMedian = "median"
	FillMode   = "mode"
	FillFfill  = "ffill"
	FillBfill  = "bfill"
	FillValue  = "value"
)

// Layouts de data reconhecidos por ParseDates, testados em ordem.
var dateLayouts = []string{
	core.DateLayout,
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02-01-2006",
}

// DropMissingValues remove linhas com valores ausentes nas colunas
// selecionadas. columns vazio considera todas as colunas; how é 'any'
// (remove se houver QUALQUER ausente) ou 'all' (remove se TODOS ausentes).
func DropMissingValues(a *core.ArbovirusDataFrame, columns []string, how string) (*core.ArbovirusDataFrame, error) {
	if how != "any" && how != "all" {
		return nil, fmt.Errorf("%w: 'how' deve ser 'any' ou 'all', recebido '%s'", core.ErrInvalidArgument, how)
	}
	if len(columns) > 0 {
		if missing := a.MissingColumns(columns); len(missing) > 0 {
			return nil, core.NewColumnNotFound("remoção de valores ausentes", missing...)
		}
	} else {
		columns = a.Columns()
	}

	df := a.DataFrame()
	nrow := df.Nrow()
	masks := make([][]bool, len(columns))
	for i, col := range columns {
		masks[i] = df.Col(col).IsNaN()
	}

	keep := make([]bool, nrow)
	for r := 0; r < nrow; r++ {
		naCount := 0
		for i := range masks {
			if masks[i][r] {
				naCount++
			}
		}
		switch how {
		case "any":
			keep[r] = naCount == 0
		case "all":
			keep[r] = naCount < len(columns)
		}
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return nil, core.NewInvalidTransformation("", out.Err)
	}
	return a.Derive(out), nil
}

// FillOptions parametriza FillMissingValues.
type FillOptions struct {
	Strategy string
	Columns  []string    // vazio: numéricas para mean/median, todas para as demais
	Value    interface{} // obrigatório para a estratégia 'value'
	Limit    int         // máximo de preenchimentos consecutivos em ffill/bfill; 0 = sem limite
}

// FillMissingValues preenche valores ausentes conforme a estratégia.
//
// A estratégia 'mode' é um no-op em colunas cujo conjunto de modas é vazio
// (coluna inteiramente ausente). Se o conjunto de colunas resolvido for
// vazio, a tabela volta inalterada.
func FillMissingValues(a *core.ArbovirusDataFrame, opts FillOptions) (*core.ArbovirusDataFrame, error) {
	switch opts.Strategy {
	case FillMean, FillMedian, FillMode, FillFfill, FillBfill, FillValue:
	default:
		return nil, fmt.Errorf("%w: estratégia de preenchimento não suportada: '%s'", core.ErrInvalidArgument, opts.Strategy)
	}
	if opts.Strategy == FillValue && opts.Value == nil {
		return nil, fmt.Errorf("%w: um valor deve ser fornecido quando a estratégia for 'value'", core.ErrInvalidArgument)
	}

	columns := opts.Columns
	if len(columns) > 0 {
		if missing := a.MissingColumns(columns); len(missing) > 0 {
			return nil, core.NewColumnNotFound("preenchimento de valores ausentes", missing...)
		}
	} else if opts.Strategy == FillMean || opts.Strategy == FillMedian {
		columns = numericColumns(a)
	} else {
		columns = a.Columns()
	}
	if len(columns) == 0 {
		return a.Derive(a.DataFrame()), nil
	}

	df := a.DataFrame()
	for _, col := range columns {
		filled, err := fillColumn(df, col, opts)
		if err != nil {
			return nil, err
		}
		if filled != nil {
			df = df.Mutate(*filled)
			if df.Err != nil {
				return nil, core.NewInvalidTransformation(col, df.Err)
			}
		}
	}
	return a.Derive(df), nil
}

// fillColumn aplica a estratégia a uma única coluna. Devolve nil quando a
// coluna deve ficar como está (no-op).
func fillColumn(df dataframe.DataFrame, col string, opts FillOptions) (result *series.Series, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, core.NewInvalidTransformation(col, fmt.Errorf(
				"pânico na estratégia '%s': %v", opts.Strategy, r))
		}
	}()

	s := df.Col(col)
	switch opts.Strategy {
	case FillMean, FillMedian:
		if !isNumeric(s.Type()) {
			return nil, nil
		}
		return fillStatistic(s, col, opts.Strategy)

	case FillMode:
		mode, ok := modeOf(s)
		if !ok {
			return nil, nil
		}
		out := s.Map(func(e series.Element) series.Element {
			if e.IsNA() {
				e.Set(mode)
			}
			return e
		})
		return &out, nil

	case FillFfill:
		out := fillDirectional(s, col, opts.Limit, true)
		return &out, nil

	case FillBfill:
		out := fillDirectional(s, col, opts.Limit, false)
		return &out, nil

	case FillValue:
		out := s.Map(func(e series.Element) series.Element {
			if e.IsNA() {
				e.Set(opts.Value)
			}
			return e
		})
		return &out, nil
	}
	return nil, nil
}

// fillStatistic preenche ausentes com a média ou mediana dos valores válidos.
// Colunas inteiras são promovidas a ponto flutuante quando o valor de
// preenchimento tem parte fracionária.
func fillStatistic(s series.Series, col, strategy string) (*series.Series, error) {
	floats := s.Float()
	var valid []float64
	for _, v := range floats {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	var fill float64
	if strategy == FillMean {
		sum := 0.0
		for _, v := range valid {
			sum += v
		}
		fill = sum / float64(len(valid))
	} else {
		sort.Float64s(valid)
		n := len(valid)
		if n%2 == 1 {
			fill = valid[n/2]
		} else {
			fill = (valid[n/2-1] + valid[n/2]) / 2
		}
	}

	filled := make([]float64, len(floats))
	for i, v := range floats {
		if math.IsNaN(v) {
			filled[i] = fill
		} else {
			filled[i] = v
		}
	}

	if s.Type() == series.Int && fill == math.Trunc(fill) {
		ints := make([]int, len(filled))
		for i, v := range filled {
			ints[i] = int(v)
		}
		out := series.New(ints, series.Int, col)
		return &out, nil
	}
	out := series.New(filled, series.Float, col)
	return &out, nil
}

// fillDirectional propaga o último valor válido para frente (forward=true)
// ou o próximo válido para trás, respeitando o limite de preenchimentos
// consecutivos.
func fillDirectional(s series.Series, col string, limit int, forward bool) series.Series {
	n := s.Len()
	records := s.Records()
	na := s.IsNaN()

	out := make([]string, n)
	var last string
	hasLast := false
	run := 0

	for k := 0; k < n; k++ {
		i := k
		if !forward {
			i = n - 1 - k
		}
		switch {
		case !na[i]:
			last, hasLast, run = records[i], true, 0
			out[i] = records[i]
		case hasLast && (limit <= 0 || run < limit):
			out[i] = last
			run++
		default:
			out[i] = "NaN"
		}
	}
	return series.New(out, s.Type(), col)
}

// DropDuplicates remove linhas duplicadas. subset vazio compara linhas
// inteiras; keep é 'first', 'last' ou 'none' (remove todas as ocorrências
// duplicadas).
func DropDuplicates(a *core.ArbovirusDataFrame, subset []string, keep string) (*core.ArbovirusDataFrame, error) {
	if keep != "first" && keep != "last" && keep != "none" {
		return nil, fmt.Errorf("%w: 'keep' deve ser 'first', 'last' ou 'none', recebido '%s'", core.ErrInvalidArgument, keep)
	}
	if len(subset) > 0 {
		if missing := a.MissingColumns(subset); len(missing) > 0 {
			return nil, core.NewColumnNotFound("remoção de duplicatas", missing...)
		}
	} else {
		subset = a.Columns()
	}

	df := a.DataFrame()
	nrow := df.Nrow()
	keys := make([]string, nrow)
	for _, col := range subset {
		records := df.Col(col).Records()
		for r := 0; r < nrow; r++ {
			keys[r] += records[r] + "\x1f"
		}
	}

	var indices []int
	switch keep {
	case "first":
		seen := map[string]bool{}
		for r := 0; r < nrow; r++ {
			if !seen[keys[r]] {
				seen[keys[r]] = true
				indices = append(indices, r)
			}
		}
	case "last":
		seen := map[string]bool{}
		for r := nrow - 1; r >= 0; r-- {
			if !seen[keys[r]] {
				seen[keys[r]] = true
				indices = append(indices, r)
			}
		}
		sort.Ints(indices)
	case "none":
		counts := map[string]int{}
		for r := 0; r < nrow; r++ {
			counts[keys[r]]++
		}
		for r := 0; r < nrow; r++ {
			if counts[keys[r]] == 1 {
				indices = append(indices, r)
			}
		}
	}

	if indices == nil {
		indices = []int{}
	}
	out := df.Subset(indices)
	if out.Err != nil {
		return nil, core.NewInvalidTransformation("", out.Err)
	}
	return a.Derive(out), nil
}

// ApplyFunctionToColumn aplica fn elemento a elemento na coluna. Qualquer
// pânico de fn é capturado e relançado como transformação inválida.
func ApplyFunctionToColumn(a *core.ArbovirusDataFrame, column string, fn func(series.Element) series.Element) (result *core.ArbovirusDataFrame, err error) {
	if !a.HasColumn(column) {
		return nil, core.NewColumnNotFound("aplicação de função", column)
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, core.NewInvalidTransformation(column, fmt.Errorf("pânico ao aplicar função: %v", r))
		}
	}()

	df := a.DataFrame()
	mapped := df.Col(column).Map(fn)
	if mapped.Err != nil {
		return nil, core.NewInvalidTransformation(column, mapped.Err)
	}
	out := df.Mutate(mapped)
	if out.Err != nil {
		return nil, core.NewInvalidTransformation(column, out.Err)
	}
	return a.Derive(out), nil
}

// CreateNewColumn cria uma coluna nova a partir de uma função aplicada à
// tabela inteira. fn deve devolver uma série com o mesmo número de linhas,
// alinhada por posição.
func CreateNewColumn(a *core.ArbovirusDataFrame, name string, fn func(dataframe.DataFrame) series.Series) (result *core.ArbovirusDataFrame, err error) {
	if a.HasColumn(name) {
		return nil, fmt.Errorf("%w: a coluna '%s' já existe", core.ErrInvalidArgument, name)
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, core.NewInvalidTransformation(name, fmt.Errorf("pânico ao criar coluna: %v", r))
		}
	}()

	df := a.DataFrame()
	s := fn(df)
	if s.Err != nil {
		return nil, core.NewInvalidTransformation(name, s.Err)
	}
	if s.Len() != df.Nrow() {
		return nil, core.NewInvalidTransformation(name, fmt.Errorf(
			"série com %d valores para %d linhas", s.Len(), df.Nrow()))
	}
	s.Name = name
	out := df.Mutate(s)
	if out.Err != nil {
		return nil, core.NewInvalidTransformation(name, out.Err)
	}
	return a.Derive(out), nil
}

// RenameColumns renomeia colunas conforme os pares informados. Falha listando
// todos os nomes de origem ausentes.
func RenameColumns(a *core.ArbovirusDataFrame, renames []Rename) (*core.ArbovirusDataFrame, error) {
	var from []string
	for _, r := range renames {
		from = append(from, r.From)
	}
	if missing := a.MissingColumns(from); len(missing) > 0 {
		return nil, core.NewColumnNotFound("renomeação de colunas", missing...)
	}

	df := a.DataFrame()
	for _, r := range renames {
		df = df.Rename(r.To, r.From)
		if df.Err != nil {
			return nil, core.NewInvalidTransformation(r.From, df.Err)
		}
	}
	out := a.Derive(df)
	for _, r := range renames {
		if a.IsDateColumn(r.From) {
			out = out.WithDateColumns(r.To)
		}
	}
	return out, nil
}

// ParseDates converte a coluna para a forma canônica de data (AAAA-MM-DD) e
// a marca como coluna de data. Valores não reconhecidos viram ausentes, para
// serem descartados por DropMissingValues — o equivalente do antigo
// to_datetime com coerção.
func ParseDates(a *core.ArbovirusDataFrame, column string) (*core.ArbovirusDataFrame, error) {
	if !a.HasColumn(column) {
		return nil, core.NewColumnNotFound("conversão de datas", column)
	}

	df := a.DataFrame()
	s := df.Col(column)
	records := s.Records()
	na := s.IsNaN()

	out := make([]string, len(records))
	for i, rec := range records {
		if na[i] {
			out[i] = "NaN"
			continue
		}
		out[i] = "NaN"
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, rec); err == nil {
				out[i] = t.Format(core.DateLayout)
				break
			}
		}
	}

	mutated := df.Mutate(series.New(out, series.String, column))
	if mutated.Err != nil {
		return nil, core.NewInvalidTransformation(column, mutated.Err)
	}
	return a.Derive(mutated).WithDateColumns(column), nil
}

// CalculateRollingMean calcula a média móvel da coluna sobre uma janela de
// windowSize linhas e a adiciona como '{coluna}_media_{janela}d'. A janela é
// retroativa e encolhe no início da série (nunca menos de uma linha).
func CalculateRollingMean(a *core.ArbovirusDataFrame, column string, windowSize int) (*core.ArbovirusDataFrame, error) {
	return rolling(a, column, windowSize, "media", true)
}

// CalculateRollingSum calcula a soma móvel da coluna sobre uma janela de
// windowSize linhas e a adiciona como '{coluna}_soma_{janela}d'.
func CalculateRollingSum(a *core.ArbovirusDataFrame, column string, windowSize int) (*core.ArbovirusDataFrame, error) {
	return rolling(a, column, windowSize, "soma", false)
}

// rolling implementa as duas agregações móveis. A RollingSeries da gota não
// oferece soma nem ignora ausentes, então ambas compartilham esta janela.
func rolling(a *core.ArbovirusDataFrame, column string, windowSize int, suffix string, mean bool) (*core.ArbovirusDataFrame, error) {
	if !a.HasColumn(column) {
		return nil, core.NewColumnNotFound(fmt.Sprintf("cálculo de %s móvel", suffix), column)
	}
	if windowSize < 1 {
		return nil, fmt.Errorf("%w: janela deve ser positiva, recebido %d", core.ErrInvalidArgument, windowSize)
	}

	df := a.DataFrame()
	vals := df.Col(column).Float()
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - windowSize + 1
		if lo < 0 {
			lo = 0
		}
		sum, count := 0.0, 0
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				sum += vals[j]
				count++
			}
		}
		switch {
		case count == 0:
			out[i] = math.NaN()
		case mean:
			out[i] = sum / float64(count)
		default:
			out[i] = sum
		}
	}

	name := fmt.Sprintf("%s_%s_%dd", column, suffix, windowSize)
	mutated := df.Mutate(series.New(out, series.Float, name))
	if mutated.Err != nil {
		return nil, core.NewInvalidTransformation(column, mutated.Err)
	}
	return a.Derive(mutated), nil
}

// ShiftCases desloca a contagem de casos em um número de dias de calendário:
// o valor na data D passa a ser o valor originalmente na data D+days,
// alinhado por data — não por posição — de modo que lacunas na série são
// respeitadas. A coluna nova chama-se '{coluna}_{days}dias'.
//
// Linhas cujo deslocamento não tem valor definido (cauda da série, ou salto
// sobre data ausente) recebem o próprio valor não deslocado. Esse fallback é
// o comportamento histórico do framework e é mantido à risca.
func ShiftCases(a *core.ArbovirusDataFrame, dateColumn, valueColumn string, days int) (*core.ArbovirusDataFrame, error) {
	if missing := a.MissingColumns([]string{dateColumn, valueColumn}); len(missing) > 0 {
		return nil, core.NewColumnNotFound("adiantamento de casos", missing...)
	}
	if !a.IsDateColumn(dateColumn) {
		return nil, core.NewInvalidTransformation(dateColumn, fmt.Errorf(
			"a coluna deve ser do tipo data para adiantar casos"))
	}

	sorted := a.DataFrame().Arrange(dataframe.Sort(dateColumn))
	if sorted.Err != nil {
		return nil, core.NewInvalidTransformation(dateColumn, sorted.Err)
	}
	if days == 0 {
		return a.Derive(sorted), nil
	}

	dates := sorted.Col(dateColumn).Records()
	values := sorted.Col(valueColumn)
	records := values.Records()

	// Primeira ocorrência vence em datas repetidas.
	byDate := make(map[string]string, len(dates))
	for i, d := range dates {
		if _, ok := byDate[d]; !ok {
			byDate[d] = records[i]
		}
	}

	out := make([]string, len(records))
	for i := range records {
		out[i] = records[i]
		t, err := time.Parse(core.DateLayout, dates[i])
		if err != nil {
			continue
		}
		target := t.AddDate(0, 0, days).Format(core.DateLayout)
		if v, ok := byDate[target]; ok {
			out[i] = v
		}
	}

	if days < 0 {
		days = -days
	}
	name := fmt.Sprintf("%s_%ddias", valueColumn, days)
	mutated := sorted.Mutate(series.New(out, values.Type(), name))
	if mutated.Err != nil {
		return nil, core.NewInvalidTransformation(valueColumn, mutated.Err)
	}
	return a.Derive(mutated), nil
}

// IdentifySeason devolve a estação do ano no hemisfério sul para a data.
// Limites fixos por ano civil: outono 20/03, inverno 21/06, primavera 22/09
// e verão 21/12 (atravessando para o ano seguinte).
func IdentifySeason(t time.Time) string {
	year := t.Year()
	outono := time.Date(year, 3, 20, 0, 0, 0, 0, time.UTC)
	inverno := time.Date(year, 6, 21, 0, 0, 0, 0, time.UTC)
	primavera := time.Date(year, 9, 22, 0, 0, 0, 0, time.UTC)
	verao := time.Date(year, 12, 21, 0, 0, 0, 0, time.UTC)

	switch {
	case !t.Before(verao) || t.Before(outono):
		return "Verão"
	case t.Before(inverno):
		return "Outono"
	case t.Before(primavera):
		return "Inverno"
	default:
		return "Primavera"
	}
}

// AddSeasonColumn adiciona a coluna 'estacao' com base na coluna de data
// informada. Data ausente produz estação ausente.
func AddSeasonColumn(a *core.ArbovirusDataFrame, dateColumn string) (*core.ArbovirusDataFrame, error) {
	if !a.HasColumn(dateColumn) {
		return nil, core.NewColumnNotFound("adição de estação", dateColumn)
	}
	if !a.IsDateColumn(dateColumn) {
		return nil, core.NewInvalidTransformation(dateColumn, fmt.Errorf(
			"a coluna deve ser do tipo data para identificar a estação"))
	}

	df := a.DataFrame()
	s := df.Col(dateColumn)
	records := s.Records()
	na := s.IsNaN()

	labels := make([]string, len(records))
	for i, rec := range records {
		if na[i] {
			labels[i] = "NaN"
			continue
		}
		t, err := time.Parse(core.DateLayout, rec)
		if err != nil {
			labels[i] = "NaN"
			continue
		}
		labels[i] = IdentifySeason(t)
	}

	mutated := df.Mutate(series.New(labels, series.String, "estacao"))
	if mutated.Err != nil {
		return nil, core.NewInvalidTransformation(dateColumn, mutated.Err)
	}
	return a.Derive(mutated), nil
}

// RoundNumericColumns arredonda todas as colunas de ponto flutuante para o
// número de casas decimais informado.
func RoundNumericColumns(a *core.ArbovirusDataFrame, decimals int) (*core.ArbovirusDataFrame, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%w: casas decimais deve ser não negativo, recebido %d", core.ErrInvalidArgument, decimals)
	}
	factor := math.Pow(10, float64(decimals))

	df := a.DataFrame()
	names := df.Names()
	types := df.Types()
	for i, name := range names {
		if types[i] != series.Float {
			continue
		}
		rounded := df.Col(name).Map(func(e series.Element) series.Element {
			if !e.IsNA() {
				e.Set(math.Round(e.Float()*factor) / factor)
			}
			return e
		})
		df = df.Mutate(rounded)
		if df.Err != nil {
			return nil, core.NewInvalidTransformation(name, df.Err)
		}
	}
	return a.Derive(df), nil
}

// ToNumeric coage a coluna para ponto flutuante; valores não conversíveis
// viram ausentes.
func ToNumeric(a *core.ArbovirusDataFrame, column string) (*core.ArbovirusDataFrame, error) {
	if !a.HasColumn(column) {
		return nil, core.NewColumnNotFound("coerção numérica", column)
	}
	df := a.DataFrame()
	s := df.Col(column)
	if s.Type() == series.Float || s.Type() == series.Int {
		return a.Derive(df), nil
	}
	mutated := df.Mutate(series.New(s.Float(), series.Float, column))
	if mutated.Err != nil {
		return nil, core.NewInvalidTransformation(column, mutated.Err)
	}
	return a.Derive(mutated), nil
}

// numericColumns lista as colunas de tipo numérico do handle.
func numericColumns(a *core.ArbovirusDataFrame) []string {
	df := a.DataFrame()
	names := df.Names()
	types := df.Types()
	var out []string
	for i, name := range names {
		if isNumeric(types[i]) {
			out = append(out, name)
		}
	}
	return out
}

func isNumeric(t series.Type) bool {
	return t == series.Int || t == series.Float
}

// modeOf devolve a moda dos valores presentes da série; empates resolvem
// pela menor representação textual, para resultado determinístico.
func modeOf(s series.Series) (string, bool) {
	records := s.Records()
	na := s.IsNaN()
	counts := map[string]int{}
	for i, rec := range records {
		if !na[i] {
			counts[rec]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}
	best, bestCount := "", -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, true
}
