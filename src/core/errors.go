package core

import (
	"errors"
	"fmt"
	"strings"
)

// Erros sentinela do framework. Usar errors.Is para testá-los.
var (
	// ErrFileNotFound indica que um arquivo especificado não existe.
	ErrFileNotFound = errors.New("arquivo não encontrado")

	// ErrInvalidFileFormat indica um arquivo com extensão diferente de .csv.
	ErrInvalidFileFormat = errors.New("formato de arquivo inválido")

	// ErrInvalidCSV indica um CSV vazio, malformado ou ilegível.
	ErrInvalidCSV = errors.New("CSV inválido")

	// ErrInvalidArgument indica um argumento inválido passado a uma operação
	// (estratégia desconhecida, valor ausente, nome de coluna já existente).
	ErrInvalidArgument = errors.New("argumento inválido")

	// ErrFramework é o erro genérico para falhas de E/S do próprio framework,
	// como falha ao gravar um artefato em disco.
	ErrFramework = errors.New("erro interno do ArbovirusFramework")
)

// ColumnNotFoundError é levantado quando uma ou mais colunas esperadas não
// existem no DataFrame. Sempre lista TODAS as colunas ausentes, nunca apenas
// a primeira.
type ColumnNotFoundError struct {
	Columns []string // nomes ausentes, na ordem em que foram pedidos
	Context string   // operação que exigia as colunas
}

func (e *ColumnNotFoundError) Error() string {
	msg := fmt.Sprintf("colunas não encontradas: %s", strings.Join(e.Columns, ", "))
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", e.Context, msg)
	}
	return msg
}

// NewColumnNotFound cria um ColumnNotFoundError para as colunas informadas.
func NewColumnNotFound(context string, columns ...string) *ColumnNotFoundError {
	return &ColumnNotFoundError{Columns: columns, Context: context}
}

// InvalidTransformationError é levantado quando o cálculo de uma transformação
// falha (tipo incompatível, predicado inválido, função que entrou em pânico).
type InvalidTransformationError struct {
	Column string // coluna ofensora, quando conhecida
	Err    error
}

func (e *InvalidTransformationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("transformação inválida na coluna '%s': %v", e.Column, e.Err)
	}
	return fmt.Sprintf("transformação inválida: %v", e.Err)
}

func (e *InvalidTransformationError) Unwrap() error { return e.Err }

// NewInvalidTransformation embrulha err como falha de transformação da coluna.
func NewInvalidTransformation(column string, err error) *InvalidTransformationError {
	return &InvalidTransformationError{Column: column, Err: err}
}

// DataProcessingError embrulha qualquer falha ocorrida dentro de uma etapa
// composta do pipeline (por exemplo a combinação), nomeando a cidade afetada.
type DataProcessingError struct {
	City string
	Err  error
}

func (e *DataProcessingError) Error() string {
	return fmt.Sprintf("erro no processamento de dados para %s: %v", e.City, e.Err)
}

func (e *DataProcessingError) Unwrap() error { return e.Err }
