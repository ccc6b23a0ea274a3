package config

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	ERPNext  ERPNextConfig
	Supply   SupplyConfig
	Promise  PromiseConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	SupplyTTLSeconds int
}

type ERPNextConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// SupplyConfig selects where stock and incoming supply are read from:
// "csv" (local fixtures), "postgres" or "erpnext".
type SupplyConfig struct {
	Source  string
	DataDir string
}

// PromiseConfig carries the default business rules applied when a request
// supplies none. The lead-time override maps come from JSON-encoded env
// values, e.g. PROMISE_ITEM_LEAD_TIMES={"WIDGET-XL":5}.
type PromiseConfig struct {
	DefaultWarehouse       string
	NoWeekends             bool
	CutoffTime             string
	Timezone               string
	LeadTimeBufferDays     int
	ProcessingLeadTimeDays int
	ItemLeadTimes          map[string]int
	WarehouseLeadTimes     map[string]int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8000")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "otp")
		viper.SetDefault("DB_SSLMODE", "disable")

		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_SUPPLY_TTL_SECONDS", 60)

		viper.SetDefault("ERPNEXT_URL", "http://localhost:8080")
		viper.SetDefault("ERPNEXT_API_KEY", "")
		viper.SetDefault("ERPNEXT_API_SECRET", "")

		viper.SetDefault("SUPPLY_SOURCE", "csv")
		viper.SetDefault("SUPPLY_DATA_DIR", "./data")

		viper.SetDefault("PROMISE_DEFAULT_WAREHOUSE", "Stores - WH")
		viper.SetDefault("PROMISE_NO_WEEKENDS", true)
		viper.SetDefault("PROMISE_CUTOFF_TIME", "14:00")
		viper.SetDefault("PROMISE_TIMEZONE", "UTC")
		viper.SetDefault("PROMISE_LEAD_TIME_BUFFER_DAYS", 1)
		viper.SetDefault("PROMISE_PROCESSING_LEAD_TIME_DAYS", 1)
		viper.SetDefault("PROMISE_ITEM_LEAD_TIMES", "")
		viper.SetDefault("PROMISE_WAREHOUSE_LEAD_TIMES", "")

		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:          viper.GetBool("CACHE_ENABLED"),
				RedisURL:         viper.GetString("REDIS_URL"),
				RedisHost:        viper.GetString("REDIS_HOST"),
				RedisPort:        viper.GetString("REDIS_PORT"),
				RedisPassword:    viper.GetString("REDIS_PASSWORD"),
				RedisDB:          viper.GetInt("REDIS_DB"),
				SupplyTTLSeconds: viper.GetInt("CACHE_SUPPLY_TTL_SECONDS"),
			},
			ERPNext: ERPNextConfig{
				URL:       viper.GetString("ERPNEXT_URL"),
				APIKey:    viper.GetString("ERPNEXT_API_KEY"),
				APISecret: viper.GetString("ERPNEXT_API_SECRET"),
			},
			Supply: SupplyConfig{
				Source:  viper.GetString("SUPPLY_SOURCE"),
				DataDir: viper.GetString("SUPPLY_DATA_DIR"),
			},
			Promise: PromiseConfig{
				DefaultWarehouse:       viper.GetString("PROMISE_DEFAULT_WAREHOUSE"),
				NoWeekends:             viper.GetBool("PROMISE_NO_WEEKENDS"),
				CutoffTime:             viper.GetString("PROMISE_CUTOFF_TIME"),
				Timezone:               viper.GetString("PROMISE_TIMEZONE"),
				LeadTimeBufferDays:     viper.GetInt("PROMISE_LEAD_TIME_BUFFER_DAYS"),
				ProcessingLeadTimeDays: viper.GetInt("PROMISE_PROCESSING_LEAD_TIME_DAYS"),
				ItemLeadTimes:          leadTimeMap("PROMISE_ITEM_LEAD_TIMES"),
				WarehouseLeadTimes:     leadTimeMap("PROMISE_WAREHOUSE_LEAD_TIMES"),
			},
		}
	})

	return instance
}

func leadTimeMap(key string) map[string]int {
	raw := viper.GetString(key)
	if raw == "" {
		return nil
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		log.Printf("ignoring malformed %s: %v", key, err)
		return nil
	}
	return m
}
