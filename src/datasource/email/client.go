// Package email busca na caixa IMAP da equipe os exports de notificação
// enviados pela secretaria de saúde e os deposita na árvore de dados dos
// municípios, de onde a ingestão epidemiológica os lê.
package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/Frankl1sales/ArbovirusFramework2/src/storage"
)

const (
	// MaxFetchMessages limita a busca para não carregar a caixa inteira.
	MaxFetchMessages = 100
	// FetchBufferSize é o tamanho do canal de mensagens da busca assíncrona.
	FetchBufferSize = 10
	// RecentMailDuration define o que conta como mensagem recente.
	RecentMailDuration = 7 * 24 * time.Hour
)

// MailService é a interface mínima do cliente de correio, para permitir um
// cliente falso nos testes.
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

// EmailHandler processa uma mensagem buscada.
type EmailHandler interface {
	Handle(email *Email) error
}

// Email é a mensagem já decodificada.
type Email struct {
	UID         uint32
	Date        time.Time
	From        string
	Subject     string
	Attachments []*Attachment
}

// Attachment é um anexo com o conteúdo em memória.
type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient implementa MailService sobre IMAP com TLS.
type EmailClient struct {
	server    string
	username  string
	password  string
	client    *client.Client
	mu        sync.Mutex
	connected bool
}

// NewEmailClient cria o cliente para o servidor informado (host:porta).
func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect estabelece (ou revalida) a conexão e autentica.
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		s.client.Logout()
		s.client = nil
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("falha ao conectar ao servidor de correio: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("falha no login: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

// Disconnect encerra a sessão, se houver.
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchUnreadEmails busca as mensagens não lidas recentes da INBOX.
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("não conectado ao servidor de correio")
	}

	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("falha ao selecionar a caixa de entrada: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailDuration)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("falha na busca de mensagens: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxFetchMessages {
		ids = ids[:MaxFetchMessages]
	}
	return s.fetchMessages(ids)
}

// fetchMessages baixa e decodifica as mensagens dos IDs informados.
func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	for msg := range messages {
		email, err := s.parseEmail(msg, section)
		if err != nil {
			continue // mensagem malformada não derruba a busca
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("falha ao baixar mensagens: %w", err)
	}
	return emails, nil
}

func (s *EmailClient) parseEmail(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("mensagem sem corpo")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler a mensagem: %w", err)
	}

	header := mr.Header
	date, _ := header.Date()

	email := &Email{
		UID:     msg.Uid,
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}
	if err := s.parseEmailParts(mr, email); err != nil {
		return nil, err
	}
	return email, nil
}

func (s *EmailClient) parseEmailParts(mr *mail.Reader, email *Email) error {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			s.parseAttachment(h, p.Body, email)
		}
	}
	return nil
}

func (s *EmailClient) parseAttachment(h *mail.AttachmentHeader, body io.Reader, email *Email) {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return
	}
	email.Attachments = append(email.Attachments, &Attachment{
		Filename: decodeHeader(filename),
		Content:  buf.Bytes(),
	})
}

// decodeHeader decodifica cabeçalhos na forma =?charset?encoding?texto?=.
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{
		CharsetReader: charsetReader,
	}
	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader converte os charsets latinos comuns em exports brasileiros.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	default:
		return input, nil
	}
}

// CheckAndFetchExports conecta, busca as mensagens não lidas com o assunto
// alvo e entrega cada uma ao handler, da mais antiga para a mais recente.
// Devolve quantas mensagens foram entregues.
func CheckAndFetchExports(service MailService, handler EmailHandler, targetSubject string, logger *storage.Logger) (int, error) {
	start := time.Now()
	logger.Info("verificando a caixa de correio...")

	if err := service.Connect(); err != nil {
		return 0, fmt.Errorf("falha de conexão: %w", err)
	}
	defer service.Disconnect()

	emails, err := service.FetchUnreadEmails()
	if err != nil {
		return 0, fmt.Errorf("falha ao buscar mensagens: %w", err)
	}
	if len(emails) == 0 {
		logger.Info("nenhuma mensagem nova")
		return 0, nil
	}

	var targets []*Email
	for _, e := range emails {
		if strings.Contains(e.Subject, targetSubject) {
			targets = append(targets, e)
		}
	}
	if len(targets) == 0 {
		logger.Info("nenhuma mensagem com o assunto alvo")
		return 0, nil
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Date.Before(targets[j].Date)
	})

	handled := 0
	for _, e := range targets {
		if err := handler.Handle(e); err != nil {
			logger.Logf(storage.ERROR, "falha ao processar mensagem '%s': %v", e.Subject, err)
			continue
		}
		handled++
	}

	logger.Logf(storage.INFO, "caixa verificada em %v: %d mensagem(ns) processada(s)", time.Since(start), handled)
	return handled, nil
}
