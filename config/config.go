package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultCityURLs = "Rutland=https://www.airbnb.com/s/Rutland--VT/homes?tab_id=home_tab" +
	"&refinement_paths%5B%5D=%2Fhomes&flexible_date_search_filter_type=2&adults=2" +
	"&source=structured_search_input_header&checkin=2021-02-12&checkout=2021-02-15&search_type=search_query"

// City is one configured search: the name stamped on every row and the
// first results page to walk.
type City struct {
	Name string
	URL  string
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Cities  []City
	BaseURL string

	SampleSize int
	SampleSeed int64

	MaxPages        int
	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
	DetailTimeout   time.Duration
	StaticTimeout   time.Duration
	PageWait        time.Duration
	AmenitiesWait   time.Duration
	DropFailedJoins bool

	DetailsCSVPath string
	ResumeDetails  bool
	RawCSVPath     string
	CSVOutputPath  string
	ChromeBin      string
	// SearchFetcher is "static" or "browser".
	SearchFetcher string

	CacheBackend string
	MemcacheAddr string
	RedisAddr    string
	RedisDB      int
	PageCacheTTL time.Duration

	StorePostgres    bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Cities:  ParseCities(getEnv("CITY_URLS", defaultCityURLs)),
		BaseURL: getEnv("BASE_URL", "https://www.airbnb.com"),

		SampleSize: getEnvInt("SAMPLE_SIZE", 0),
		SampleSeed: int64(getEnvInt("SAMPLE_SEED", 1234)),

		MaxPages:        getEnvInt("MAX_PAGES", 50),
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 4),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 500),
		MaxRetries:      getEnvInt("MAX_RETRIES", 1),
		DetailTimeout:   getEnvSeconds("DETAIL_TIMEOUT_SEC", 90),
		StaticTimeout:   getEnvSeconds("STATIC_TIMEOUT_SEC", 30),
		PageWait:        getEnvMillis("PAGE_WAIT_MS", 2500),
		AmenitiesWait:   getEnvMillis("AMENITIES_WAIT_MS", 5000),
		DropFailedJoins: getEnvBool("DROP_FAILED_DETAILS", true),

		DetailsCSVPath: getEnv("DETAILS_CSV_PATH", "./output/intermediate_details.csv"),
		ResumeDetails:  getEnvBool("RESUME_DETAILS", false),
		RawCSVPath:     getEnv("RAW_CSV_PATH", "./output/raw_listings.csv"),
		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		SearchFetcher:  strings.ToLower(getEnv("SEARCH_FETCHER", "static")),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", "none")),
		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      getEnvInt("REDIS_DB", 0),
		PageCacheTTL: getEnvSeconds("PAGE_CACHE_TTL_SEC", 3600),

		StorePostgres:    getEnvBool("STORE_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ParseCities reads "Name=URL;Name=URL". The name ends at the first '=' so
// query strings in the URL survive. Malformed entries are skipped.
func ParseCities(raw string) []City {
	var cities []City
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			log.Printf("[config] Ignoring malformed CITY_URLS entry %q", entry)
			continue
		}
		cities = append(cities, City{Name: name, URL: url})
	}
	return cities
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
