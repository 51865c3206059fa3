package config

import (
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// External model
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIMaxTokens   int
	OpenAITemperature float64
	TTSVoice          string
	MediaDir          string

	// StrictGeneration rejects generation output whose question count
	// does not match the request; disable when a human reviews previews
	// before persistence.
	StrictGeneration bool
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		AuthSecret:         envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://app.prepstack.io"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens:    envInt("OPENAI_MAX_TOKENS", 2000),
		OpenAITemperature:  envFloat("OPENAI_TEMPERATURE", 0.7),
		TTSVoice:           envOr("TTS_VOICE", "alloy"),
		MediaDir:           envOr("MEDIA_DIR", "./uploads"),
		StrictGeneration:   envBool("STRICT_GENERATION", true),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return v
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
