package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов дневника.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	// Токен для bearer-авторизации API. Пустой токен отключает проверку.
	APIToken string `envconfig:"API_TOKEN"`

	Storage struct {
		// postgres или sqlite.
		Driver     string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"data/mood.db"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	OpenAI struct {
		APIKey         string `envconfig:"OPENAI_API_KEY"`
		BaseURL        string `envconfig:"OPENAI_BASE_URL"`
		Model          string `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		TimeoutSeconds int    `envconfig:"OPENAI_TIMEOUT_SECONDS" default:"30"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_CHAT_ID"`
	} `envconfig:""`

	Report struct {
		MinEntries int `envconfig:"REPORT_MIN_ENTRIES" default:"3"`
	} `envconfig:""`

	Queues struct {
		// redis или rabbitmq.
		Driver   string `envconfig:"QUEUE_DRIVER" default:"redis"`
		Reminder string `envconfig:"REMINDER_QUEUE_KEY" default:"reminder_jobs"`
		AMQPURL  string `envconfig:"AMQP_URL"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
