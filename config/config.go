package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"nvr-orchestrator/constant"
)

type Config struct {
	App      App       `yaml:"app"`
	Server   Server    `yaml:"server"`
	Footage  Footage   `yaml:"frigate"`
	Analysis Analysis  `yaml:"vss"`
	Profile  Profile   `yaml:"profile"`
	Staging  Staging   `yaml:"staging"`
	Rules    Rules     `yaml:"rules"`
	Events   Events    `yaml:"events"`
	Exports  Exports   `yaml:"exports"`
	Queue    *RabbitMQ `yaml:"rabbitmq"`

	// Clients below are built from the sections above; nil when their backend
	// is not selected.
	Redis   *redis.Client `yaml:"-"`
	DB      *sql.DB       `yaml:"-"`
	Storage *minio.Client `yaml:"-"`
}

type App struct {
	Environment string `yaml:"environment"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type Footage struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	ClipTimeout time.Duration `yaml:"clip_timeout"`
}

type Analysis struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
}

type Profile struct {
	Title         string `yaml:"title"`
	ChunkDuration int    `yaml:"chunk_duration"`
	SamplingFrame int    `yaml:"sampling_frame"`
	EvamPipeline  string `yaml:"evam_pipeline"`
}

type Staging struct {
	Dir string `yaml:"dir"`
}

type Rules struct {
	Backend     constant.RuleBackend `yaml:"backend"`
	RedisURL    string               `yaml:"redis_url"`
	Prefix      string               `yaml:"prefix"`
	PostgresDSN string               `yaml:"postgres_dsn"`
	Debug       bool                 `yaml:"debug"`
}

type Events struct {
	Source       constant.EventSource `yaml:"source"`
	Cameras      []string             `yaml:"cameras"`
	PollInterval time.Duration        `yaml:"poll_interval"`
	Concurrency  int                  `yaml:"concurrency"`
	// StatusInterval is how often dispatched summary jobs are re-checked.
	StatusInterval time.Duration `yaml:"status_interval"`
}

type Exports struct {
	Backend         constant.ExportBackend `yaml:"backend"`
	Dir             string                 `yaml:"dir"`
	Bucket          string                 `yaml:"bucket"`
	Prefix          string                 `yaml:"prefix"`
	MinIOURL        string                 `yaml:"minio_url"`
	AccessID        string                 `yaml:"access_id"`
	SecretAccessKey string                 `yaml:"secret_access_key"`
	Secure          bool                   `yaml:"secure"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
	Queue        string `json:"queue"`
	RoutingKey   string `json:"routing_key"`
}

func (r *RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Pass, r.Host, r.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.workers", 4)

	v.SetDefault("frigate.url", "http://localhost:5000/api")
	v.SetDefault("frigate.timeout", 10*time.Second)
	v.SetDefault("frigate.clip_timeout", 5*time.Minute)

	v.SetDefault("vss.url", "http://localhost:12345")
	v.SetDefault("vss.timeout", 10*time.Second)
	v.SetDefault("vss.upload_timeout", 30*time.Second)

	v.SetDefault("profile.chunk_duration", 8)
	v.SetDefault("profile.sampling_frame", 3)
	v.SetDefault("profile.evam_pipeline", "object_detection")

	v.SetDefault("rules.backend", string(constant.RuleBackendRedis))
	v.SetDefault("rules.redis_url", "redis://localhost:6379/0")
	v.SetDefault("rules.prefix", "nvr")

	v.SetDefault("events.source", string(constant.EventSourcePoll))
	v.SetDefault("events.poll_interval", 15*time.Second)
	v.SetDefault("events.concurrency", 4)
	v.SetDefault("events.status_interval", 10*time.Second)

	v.SetDefault("exports.backend", string(constant.ExportBackendFS))
	v.SetDefault("exports.dir", "/media/frigate/exports")

	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "topic")
	v.SetDefault("rabbitmq_exchange", "amq.topic")
	v.SetDefault("rabbitmq_queue", "nvr_events")
	v.SetDefault("rabbitmq_routing_key", "frigate.events")
}

// Load reads config.yaml from path. Every key can be overridden from the
// environment with an NVR_ prefix, dots replaced by underscores.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NVR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
		},
		Server: Server{
			HttpPort: v.GetString("server.port"),
			Workers:  v.GetInt("server.workers"),
		},
		Footage: Footage{
			URL:         v.GetString("frigate.url"),
			Timeout:     v.GetDuration("frigate.timeout"),
			ClipTimeout: v.GetDuration("frigate.clip_timeout"),
		},
		Analysis: Analysis{
			URL:           v.GetString("vss.url"),
			Timeout:       v.GetDuration("vss.timeout"),
			UploadTimeout: v.GetDuration("vss.upload_timeout"),
		},
		Profile: Profile{
			Title:         v.GetString("profile.title"),
			ChunkDuration: v.GetInt("profile.chunk_duration"),
			SamplingFrame: v.GetInt("profile.sampling_frame"),
			EvamPipeline:  v.GetString("profile.evam_pipeline"),
		},
		Staging: Staging{
			Dir: v.GetString("staging.dir"),
		},
		Rules: Rules{
			Backend:     constant.RuleBackend(v.GetString("rules.backend")),
			RedisURL:    v.GetString("rules.redis_url"),
			Prefix:      v.GetString("rules.prefix"),
			PostgresDSN: v.GetString("postgresql_host"),
			Debug:       v.GetBool("rules.debug"),
		},
		Events: Events{
			Source:         constant.EventSource(v.GetString("events.source")),
			Cameras:        v.GetStringSlice("events.cameras"),
			PollInterval:   v.GetDuration("events.poll_interval"),
			Concurrency:    v.GetInt("events.concurrency"),
			StatusInterval: v.GetDuration("events.status_interval"),
		},
		Exports: Exports{
			Backend:         constant.ExportBackend(v.GetString("exports.backend")),
			Dir:             v.GetString("exports.dir"),
			Bucket:          v.GetString("minio.bucket"),
			Prefix:          v.GetString("exports.prefix"),
			MinIOURL:        v.GetString("minio.url"),
			AccessID:        v.GetString("minio.access_id"),
			SecretAccessKey: v.GetString("minio.secret_access_key"),
			Secure:          v.GetBool("minio.secure"),
		},
		Queue: &RabbitMQ{
			Host:         v.GetString("rabbitmq_host"),
			Port:         v.GetInt("rabbitmq_port"),
			User:         v.GetString("rabbitmq_user"),
			Pass:         v.GetString("rabbitmq_pass"),
			Kind:         v.GetString("rabbitmq_kind"),
			ExchangeName: v.GetString("rabbitmq_exchange"),
			Queue:        v.GetString("rabbitmq_queue"),
			RoutingKey:   v.GetString("rabbitmq_routing_key"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.buildClients(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Rules.Backend {
	case constant.RuleBackendRedis, constant.RuleBackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("rules.backend: unknown backend %q", c.Rules.Backend))
	}
	switch c.Events.Source {
	case constant.EventSourceNone, constant.EventSourcePoll, constant.EventSourceAMQP:
	default:
		errs = append(errs, fmt.Errorf("events.source: unknown source %q", c.Events.Source))
	}
	switch c.Exports.Backend {
	case constant.ExportBackendFS, constant.ExportBackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("exports.backend: unknown backend %q", c.Exports.Backend))
	}
	if c.Rules.Backend == constant.RuleBackendPostgres && c.Rules.PostgresDSN == "" {
		errs = append(errs, errors.New("postgresql_host is required for the postgres rule backend"))
	}
	if c.Exports.Backend == constant.ExportBackendMinIO && (c.Exports.MinIOURL == "" || c.Exports.Bucket == "") {
		errs = append(errs, errors.New("minio.url and minio.bucket are required for the minio export backend"))
	}
	return errors.Join(errs...)
}

// buildClients constructs the backing clients. None of them dial until first use.
func (c *Config) buildClients() error {
	switch c.Rules.Backend {
	case constant.RuleBackendRedis:
		opts, err := redis.ParseURL(c.Rules.RedisURL)
		if err != nil {
			return fmt.Errorf("rules.redis_url: %w", err)
		}
		c.Redis = redis.NewClient(opts)
	case constant.RuleBackendPostgres:
		db, err := sql.Open("postgres", c.Rules.PostgresDSN)
		if err != nil {
			return err
		}
		c.DB = db
	}

	if c.Exports.Backend == constant.ExportBackendMinIO {
		minioClient, err := minio.New(c.Exports.MinIOURL, &minio.Options{
			Creds:  credentials.NewStaticV4(c.Exports.AccessID, c.Exports.SecretAccessKey, ""),
			Secure: c.Exports.Secure,
		})
		if err != nil {
			return err
		}
		c.Storage = minioClient
	}
	return nil
}
