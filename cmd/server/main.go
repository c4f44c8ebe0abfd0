package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/himanishpuri/maidata/pkg/logger"
	"github.com/himanishpuri/maidata/pkg/maidata"
)

var (
	port           int
	dbPath         string
	defaultOffset  float64
	allowedOrigins string
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// .env is optional; it must be loaded before flag defaults are read
	_ = godotenv.Load()

	defaultPort, err := strconv.Atoi(getEnvOrDefault("MAIDATA_PORT", "8080"))
	if err != nil {
		defaultPort = 8080
	}
	flag.IntVar(&port, "port", defaultPort, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("MAIDATA_DB_PATH", "maidata.sqlite3"), "Path to SQLite database")
	flag.Float64Var(&defaultOffset, "offset", 0, "Offset in seconds for charts that set none")
	flag.StringVar(&allowedOrigins, "origins", getEnvOrDefault("MAIDATA_ALLOWED_ORIGINS", "*"), "Comma-separated list of allowed CORS origins (use * for all)")
	flag.Parse()

	log := logger.GetLogger()

	// Parse allowed origins
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	service, err := maidata.NewService(
		maidata.WithDBPath(dbPath),
		maidata.WithDefaultOffset(defaultOffset),
		maidata.WithLogger(log.WithPrefix("[service]")),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		DefaultOffset:  defaultOffset,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
