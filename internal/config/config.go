package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Options struct {
	runAddr        string
	logLevel       string
	dataBaseDSN    string
	redisAddr      string
	catalogURL     string
	catalogTimeout time.Duration
}

func NewOptions() *Options {
	return new(Options)
}

// ParseFlags handles command line arguments
// and stores their values in the corresponding variables.
func (o *Options) ParseFlags() {
	// Load environment variables from the .env file
	loadEnvFile()

	// Override variable values with values from command line flags
	regStringVar(&o.runAddr, "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	regStringVar(&o.logLevel, "l", getEnvOrDefault("LOG_LEVEL", "info"), "log level")
	regStringVar(&o.dataBaseDSN, "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string")
	regStringVar(&o.redisAddr, "r", getEnvOrDefault("REDIS_ADDR", ""), "redis address for cart persistence")
	regStringVar(&o.catalogURL, "c", getEnvOrDefault("CATALOG_URL", ""), "product catalog source url")
	flag.DurationVar(&o.catalogTimeout, "t", getEnvDurationOrDefault("CATALOG_TIMEOUT", 10*time.Second), "catalog fetch timeout")

	// parse the arguments passed to the server into registered variables
	flag.Parse()
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) RedisAddr() string {
	return o.redisAddr
}

func (o *Options) CatalogURL() string {
	return o.catalogURL
}

func (o *Options) CatalogTimeout() time.Duration {
	return o.catalogTimeout
}

func regStringVar(p *string, name string, value string, usage string) {
	flag.StringVar(p, name, value, usage)
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvDurationOrDefault reads a duration environment variable, accepting
// either a time.Duration string or a plain number of seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	envPath := cwd + "/.env"

	err = godotenv.Load(envPath)
	if err != nil {
		log.Printf("No .env file found at %s, proceeding without it", envPath)
	}
}
