package config

import (
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	IsDebug     *bool `yaml:"is_debug" env-default:"false"`
	ChargePoint struct {
		Id              string `yaml:"id" env:"CP_ID" env-default:"cp001"`
		Vendor          string `yaml:"vendor" env-default:"cpsys"`
		Model           string `yaml:"model" env-default:"cpsys-station"`
		SerialNumber    string `yaml:"serial_number" env-default:""`
		FirmwareVersion string `yaml:"firmware_version" env-default:""`
		Connectors      int    `yaml:"connectors" env-default:"2"`
	} `yaml:"charge_point"`
	CentralSystem struct {
		Url               string `yaml:"url" env:"CS_URL" env-default:"ws://localhost:5000/ws"`
		HeartbeatInterval int    `yaml:"heartbeat_interval" env-default:"600"`
	} `yaml:"central_system"`
	Queue struct {
		TransactionMessageAttempts      int `yaml:"transaction_message_attempts" env-default:"5"`
		TransactionMessageRetryInterval int `yaml:"transaction_message_retry_interval" env-default:"10"`
		MaxNormalQueueSize              int `yaml:"max_normal_queue_size" env-default:"100"`
	} `yaml:"queue"`
	Api struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port    string `yaml:"port" env-default:"5100"`
	} `yaml:"api"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env-default:"5101"`
	} `yaml:"metrics"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"localhost"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env-default:""`
		Database string `yaml:"database" env-default:"cpsys"`
	} `yaml:"mongo"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env-default:""`
		ChatId  int64  `yaml:"chat_id" env-default:"0"`
	} `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func GetConfig() (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config")
		instance = &Config{}
		if err = cleanenv.ReadConfig("config.yml", instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			log.Println(desc)
			log.Println(err)
			instance = nil
		}
	})
	return instance, err
}
