// Package file cobre as fontes de dados em disco: leitura de planilhas de
// notificação e observação das pastas de dados climáticos brutos.
package file

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ClimateMonitor observa as pastas dados_climaticos dos municípios e avisa
// qual município recebeu um arquivo novo ou regravado.
type ClimateMonitor struct {
	watcher   *fsnotify.Watcher
	dirToCity map[string]string // diretório observado -> pasta do município
	lastMod   map[string]time.Time
	mu        sync.Mutex
}

// NewClimateMonitor cria o observador para as pastas
// {base}/{pasta}/dados_climaticos dos municípios informados. Pastas ainda
// inexistentes são ignoradas silenciosamente.
func NewClimateMonitor(basePath string, cityFolders []string, rawClimateDir string) (*ClimateMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &ClimateMonitor{
		watcher:   watcher,
		dirToCity: map[string]string{},
		lastMod:   map[string]time.Time{},
	}
	for _, folder := range cityFolders {
		dir := filepath.Join(basePath, folder, rawClimateDir)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
		m.dirToCity[dir] = folder
	}
	return m, nil
}

// Watch entrega eventos ao handler com a pasta do município dono do arquivo
// alterado. Eventos repetidos do mesmo arquivo são filtrados pelo instante de
// modificação. Bloqueia até o observador ser fechado.
func (m *ClimateMonitor) Watch(handler func(cityFolder string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			m.mu.Lock()
			fresh := info.ModTime().After(m.lastMod[event.Name])
			if fresh {
				m.lastMod[event.Name] = info.ModTime()
			}
			city, known := m.dirToCity[filepath.Dir(event.Name)]
			m.mu.Unlock()

			if fresh && known {
				go handler(city)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close encerra a observação; Watch retorna em seguida.
func (m *ClimateMonitor) Close() error {
	return m.watcher.Close()
}
