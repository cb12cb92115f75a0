package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"github.com/Frankl1sales/ArbovirusFramework2/src/config"
	"github.com/Frankl1sales/ArbovirusFramework2/src/datasource/email"
	"github.com/Frankl1sales/ArbovirusFramework2/src/datasource/file"
	"github.com/Frankl1sales/ArbovirusFramework2/src/ingestion"
	"github.com/Frankl1sales/ArbovirusFramework2/src/pipeline"
	"github.com/Frankl1sales/ArbovirusFramework2/src/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.json", "caminho do arquivo de configuração")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("falha ao carregar a configuração: ", err)
	}

	logName := cfg.LogName
	if logName == "" {
		logName = "arbovirus.log"
	}
	logger, err := storage.NewLogger(logName, storage.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatal("falha ao inicializar o log: ", err)
	}
	defer logger.Close()

	// Execução inicial completa.
	summary := pipeline.Run(cfg, logger)
	fmt.Printf("pipeline concluído: %d processado(s), %d pulado(s), %d com falha\n",
		summary.Processed, summary.Skipped, summary.Failed)

	scheduled := startSchedule(cfg, logger)
	if scheduled != nil {
		defer scheduled.Stop()
	}
	watching := startWatch(cfg, logger)
	if watching != nil {
		defer watching.Close()
	}
	mailer := startMailCheck(cfg, logger)
	if mailer != nil {
		defer mailer.Stop()
	}

	if scheduled == nil && watching == nil && mailer == nil {
		return // execução única, nada a observar
	}

	logger.Info("serviço em execução; Ctrl+C para encerrar")
	waitForShutdown(logger)
}

// startSchedule reexecuta o pipeline completo no intervalo configurado.
func startSchedule(cfg *config.Config, logger *storage.Logger) *cron.Cron {
	interval := time.Duration(cfg.Schedule)
	if interval <= 0 {
		return nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	err := c.AddFunc(spec, func() {
		logger.Logf(storage.INFO, "reexecução agendada (%s)", spec)
		pipeline.Run(cfg, logger)
		if cfg.LogMaxSize != "" {
			if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
				logger.Error("falha ao rotacionar o log: " + err.Error())
			}
		}
	})
	if err != nil {
		logger.Error("falha ao criar o agendamento: " + err.Error())
		return nil
	}
	c.Start()
	logger.Logf(storage.INFO, "reexecução agendada a cada %v", interval)
	return c
}

// startWatch reprocessa um município quando sua pasta de dados climáticos
// brutos muda.
func startWatch(cfg *config.Config, logger *storage.Logger) *file.ClimateMonitor {
	if !cfg.Watch {
		return nil
	}

	var folders []string
	cityByFolder := map[string]config.CityConfig{}
	for _, city := range cfg.Cities {
		folders = append(folders, city.FolderName)
		cityByFolder[city.FolderName] = city
	}

	monitor, err := file.NewClimateMonitor(cfg.BasePath, folders, ingestion.RawClimateDir)
	if err != nil {
		logger.Error("falha ao iniciar a observação de pastas: " + err.Error())
		return nil
	}

	// Espelha o log no console enquanto observa.
	go func() {
		for entry := range logger.Subscribe() {
			fmt.Print(entry)
		}
	}()

	go func() {
		err := monitor.Watch(func(cityFolder string) {
			city, ok := cityByFolder[cityFolder]
			if !ok {
				return
			}
			logger.Logf(storage.INFO, "dados climáticos alterados, reprocessando %s", city.MunicipioName)
			if _, err := pipeline.ProcessCity(cfg.BasePath, city, logger); err != nil {
				logger.Error(err.Error())
			}
		})
		if err != nil {
			logger.Error("erro na observação de pastas: " + err.Error())
		}
	}()

	logger.Logf(storage.INFO, "observando as pastas de dados climáticos de %d município(s)", len(folders))
	return monitor
}

// startMailCheck busca periodicamente os exports de notificação na caixa
// IMAP configurada.
func startMailCheck(cfg *config.Config, logger *storage.Logger) *cron.Cron {
	if cfg.Email.Server == "" {
		return nil
	}
	interval := time.Duration(cfg.Email.CheckInterval)
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	client := email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password)
	handler := email.NewNotificationExportHandler(cfg.BasePath, ingestion.RawEpiDir, cfg.Cities)

	c := cron.New()
	err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		handled, err := email.CheckAndFetchExports(client, handler, cfg.Email.TargetSubject, logger)
		if err != nil {
			logger.Error("falha na verificação de correio: " + err.Error())
			return
		}
		if handled > 0 {
			logger.Logf(storage.INFO, "%d export(s) recebido(s) por correio, reexecutando o pipeline", handled)
			pipeline.Run(cfg, logger)
		}
	})
	if err != nil {
		logger.Error("falha ao agendar a verificação de correio: " + err.Error())
		return nil
	}
	c.Start()
	logger.Logf(storage.INFO, "verificação de correio a cada %v", interval)
	return c
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("sinal recebido: " + sig.String() + ", encerrando...")
	logger.Close()
	os.Exit(0)
}
