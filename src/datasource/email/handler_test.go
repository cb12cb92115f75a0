package email

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Frankl1sales/ArbovirusFramework2/src/config"
	"github.com/Frankl1sales/ArbovirusFramework2/src/storage"
)

// fakeMailService devolve mensagens pré-montadas sem tocar a rede.
type fakeMailService struct {
	emails []*Email
}

func (f *fakeMailService) Connect() error                    { return nil }
func (f *fakeMailService) Disconnect()                       {}
func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) { return f.emails, nil }

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "teste.log"), storage.DEBUG)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestCheckAndFetchExports(t *testing.T) {
	base := t.TempDir()
	cities := []config.CityConfig{
		{MunicipioName: "Pelotas", FolderName: "pelotas", RawEpiFilename: "casos.csv"},
	}
	handler := NewNotificationExportHandler(base, "dados_epidemiologicos", cities)

	service := &fakeMailService{emails: []*Email{
		{
			UID:     1,
			Date:    time.Now(),
			Subject: "Export SINAN semanal",
			Attachments: []*Attachment{
				{Filename: "casos.csv", Content: []byte("dt_notific;id_municip\n")},
				{Filename: "leia-me.txt", Content: []byte("ignorar")},
			},
		},
		{UID: 2, Date: time.Now(), Subject: "assunto qualquer"},
	}}

	handled, err := CheckAndFetchExports(service, handler, "Export SINAN", newTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if handled != 1 {
		t.Fatalf("processadas = %d, esperado 1", handled)
	}

	saved := filepath.Join(base, "pelotas", "dados_epidemiologicos", "casos.csv")
	if _, err := os.Stat(saved); err != nil {
		t.Fatalf("anexo não salvo em %s: %v", saved, err)
	}
	if _, err := os.Stat(filepath.Join(base, "pelotas", "dados_epidemiologicos", "leia-me.txt")); err == nil {
		t.Fatal("anexo com extensão não aceita foi salvo")
	}
}

func TestHandlerSkipsProcessedUIDs(t *testing.T) {
	base := t.TempDir()
	cities := []config.CityConfig{
		{MunicipioName: "Pelotas", FolderName: "pelotas", RawEpiFilename: "casos.csv"},
	}
	handler := NewNotificationExportHandler(base, "dados_epidemiologicos", cities)

	msg := &Email{
		UID:     7,
		Subject: "Export SINAN",
		Attachments: []*Attachment{
			{Filename: "casos.csv", Content: []byte("primeira versão")},
		},
	}
	if err := handler.Handle(msg); err != nil {
		t.Fatal(err)
	}

	// Mesma UID com conteúdo novo não regrava o arquivo.
	msg.Attachments[0].Content = []byte("segunda versão")
	if err := handler.Handle(msg); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(filepath.Join(base, "pelotas", "dados_epidemiologicos", "casos.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "primeira versão" {
		t.Fatalf("conteúdo = %q, mensagem já processada não deveria regravar", content)
	}
}

func TestHandlerIgnoresUnknownFilenames(t *testing.T) {
	base := t.TempDir()
	handler := NewNotificationExportHandler(base, "dados_epidemiologicos", []config.CityConfig{
		{MunicipioName: "Pelotas", FolderName: "pelotas", RawEpiFilename: "casos.csv"},
	})

	if err := handler.Handle(&Email{
		UID:         3,
		Subject:     "Export SINAN",
		Attachments: []*Attachment{{Filename: "outro.csv", Content: []byte("x")}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, "pelotas", "dados_epidemiologicos", "outro.csv")); err == nil {
		t.Fatal("anexo de município desconhecido foi salvo")
	}
}
