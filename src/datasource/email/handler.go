package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Frankl1sales/ArbovirusFramework2/src/config"
	"github.com/Frankl1sales/ArbovirusFramework2/src/utils"
)

// Extensões de export de notificação aceitas como anexo.
var acceptedExportExts = []string{".csv", ".xlsx"}

// NotificationExportHandler salva anexos de export de notificação na pasta
// dados_epidemiologicos do município dono do arquivo: um anexo pertence ao
// município cuja configuração declara aquele nome de arquivo bruto.
type NotificationExportHandler struct {
	basePath      string
	rawEpiDir     string
	cities        []config.CityConfig
	processedUIDs map[uint32]bool
	mu            sync.RWMutex
}

// NewNotificationExportHandler cria o handler para os municípios informados.
func NewNotificationExportHandler(basePath, rawEpiDir string, cities []config.CityConfig) *NotificationExportHandler {
	return &NotificationExportHandler{
		basePath:      basePath,
		rawEpiDir:     rawEpiDir,
		cities:        cities,
		processedUIDs: make(map[uint32]bool),
	}
}

func (h *NotificationExportHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *NotificationExportHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle salva os anexos reconhecidos da mensagem. A mensagem só é marcada
// como processada se ao menos um anexo foi salvo, para que uma nova tentativa
// reaproveite mensagens com anexo ainda não configurado.
func (h *NotificationExportHandler) Handle(email *Email) error {
	if h.isProcessed(email.UID) {
		return nil
	}

	saved := false
	for _, attachment := range email.Attachments {
		ext := strings.ToLower(filepath.Ext(attachment.Filename))
		if !utils.Contains(acceptedExportExts, ext) {
			continue
		}
		city, ok := h.cityForFilename(attachment.Filename)
		if !ok {
			continue
		}

		dir := filepath.Join(h.basePath, city.FolderName, h.rawEpiDir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("falha ao criar diretório %s: %w", dir, err)
		}
		path := filepath.Join(dir, attachment.Filename)
		if err := os.WriteFile(path, attachment.Content, 0644); err != nil {
			return fmt.Errorf("falha ao salvar anexo em %s: %w", path, err)
		}
		saved = true
	}

	if saved {
		h.markAsProcessed(email.UID)
	}
	return nil
}

// cityForFilename localiza o município que espera o arquivo bruto informado.
func (h *NotificationExportHandler) cityForFilename(filename string) (config.CityConfig, bool) {
	for _, city := range h.cities {
		if city.RawEpiFilename != "" && city.RawEpiFilename == filename {
			return city, true
		}
	}
	return config.CityConfig{}, false
}
