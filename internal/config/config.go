package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EventsConfig carries everything the event publisher needs at construction
// time: broker address, topic names, degraded-mode cache capacity and the
// hard publish timeout.
type EventsConfig struct {
	BrokerAddr       string `yaml:"broker_addr"`
	TaskTopic        string `yaml:"task_topic"`
	ReminderTopic    string `yaml:"reminder_topic"`
	Source           string `yaml:"source"`
	CacheCapacity    int    `yaml:"cache_capacity"`
	PublishTimeoutMS int    `yaml:"publish_timeout_ms"`
}

func (c EventsConfig) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMS) * time.Millisecond
}

type RemindersConfig struct {
	MisfireGraceSeconds int `yaml:"misfire_grace_seconds"`
	// Cron spec for the daily "due tomorrow" sweep.
	DueSweepSpec string `yaml:"due_sweep_spec"`
}

func (c RemindersConfig) MisfireGrace() time.Duration {
	return time.Duration(c.MisfireGraceSeconds) * time.Second
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Events    EventsConfig    `yaml:"events"`
	Reminders RemindersConfig `yaml:"reminders"`
	Email     EmailConfig     `yaml:"email"`
}

func LoadConfig() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	f, err := os.Open(path)
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Events.TaskTopic == "" {
		c.Events.TaskTopic = "task-events"
	}
	if c.Events.ReminderTopic == "" {
		c.Events.ReminderTopic = "reminders"
	}
	if c.Events.Source == "" {
		c.Events.Source = "/todo-backend"
	}
	if c.Events.CacheCapacity <= 0 {
		c.Events.CacheCapacity = 1000
	}
	if c.Events.PublishTimeoutMS <= 0 {
		c.Events.PublishTimeoutMS = 5000
	}
	if c.Reminders.MisfireGraceSeconds <= 0 {
		c.Reminders.MisfireGraceSeconds = 3600
	}
	if c.Reminders.DueSweepSpec == "" {
		c.Reminders.DueSweepSpec = "0 6 * * *"
	}
}
