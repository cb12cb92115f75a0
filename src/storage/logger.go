// Package storage implementa o registrador de log em arquivo usado pela
// aplicação: níveis com limiar mínimo, rotação por tamanho e canais de
// assinatura para espelhar as entradas (por exemplo no console, no modo de
// observação).
package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel é o nível de severidade de uma entrada de log.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// ParseLevel converte o nome do nível vindo da configuração; desconhecido ou
// vazio vale INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "info", "":
		return INFO
	case "warning", "warn":
		return WARNING
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// Logger grava entradas de log em um arquivo, protegido para uso concorrente.
type Logger struct {
	filename    string
	minLevel    LogLevel
	file        *os.File
	mu          sync.Mutex
	subscribers []chan string
}

// NewLogger abre (ou cria) o arquivo de log e devolve o registrador com o
// limiar mínimo informado.
func NewLogger(filename string, minLevel LogLevel) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Logger{
		filename: filename,
		minLevel: minLevel,
		file:     file,
	}, nil
}

// Close fecha o arquivo de log.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Log grava uma entrada, se o nível alcançar o limiar, e a repassa aos
// assinantes. Assinante com canal cheio perde a entrada em vez de bloquear a
// gravação.
func (l *Logger) Log(level LogLevel, message string) {
	if level < l.minLevel {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fmt.Sprintf("[%s] %s: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	l.file.WriteString(entry)

	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Logf é a variante formatada de Log.
func (l *Logger) Logf(level LogLevel, format string, args ...interface{}) {
	l.Log(level, fmt.Sprintf(format, args...))
}

// CheckRotate rotaciona o arquivo de log quando ele passa do tamanho máximo.
// maxSizeExpr aceita a forma da configuração, ex.: "10 * 1024 * 1024".
func (l *Logger) CheckRotate(maxSizeExpr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() <= evalSize(maxSizeExpr) {
		return nil
	}
	return l.rotate()
}

// rotate renomeia o arquivo corrente com carimbo de tempo e abre um novo.
// Chamar com l.mu já adquirido.
func (l *Logger) rotate() error {
	l.file.Close()

	ext := ".log"
	base := strings.TrimSuffix(l.filename, ext)
	archived := fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102150405"), ext)
	if err := os.Rename(l.filename, archived); err != nil {
		return err
	}

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

// Subscribe devolve um canal somente-leitura que recebe cada entrada gravada.
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// evalSize avalia a expressão de tamanho da configuração ("a * b * c").
func evalSize(expr string) int64 {
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		result *= int64(num)
	}
	return result
}

// Atalhos por nível.
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) }
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }
