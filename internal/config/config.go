package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets for the record store and the payment
// gateways are required; optional integrations (SMTP, renderer, broker)
// degrade gracefully when unset.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	AppURL string // public base URL used when building booking/confirmation links
	Debug  bool   // verbose logging of record-store traffic

	AirtableAPIKey string // bearer key for the Airtable REST API
	AirtableBaseID string // Airtable base identifier

	BookingsTable      string // table id for bookings
	RegistrationsTable string // table id for registrations
	ItemsTable         string // table id for bookable items
	BookedItemsTable   string // table id for booked line items
	CheckInsTable      string // table id for check-ins
	MemberOrgsTable    string // table id for member organisations

	StripeSecretKey     string // Stripe API secret
	StripeWebhookSecret string // Stripe webhook signing secret
	PayPalClientID      string // PayPal REST client id
	PayPalClientSecret  string // PayPal REST client secret
	PayPalWebhookID     string // PayPal webhook id used during signature verification
	PayPalLive          bool   // live environment when true, sandbox otherwise
	Currency            string // ISO currency code used for gateway orders

	LinkSecret     string // secret used to sign booking/confirmation link tokens
	APIBearerToken string // static bearer token protecting the staff API

	ConfirmationsDir     string // directory holding cached confirmation PDFs and metadata
	ConfirmationGraceSec int    // staleness grace window in seconds
	LastModifiedField    string // operator-configured "last modified" field, tried first

	RendererURL string // HTML-to-PDF renderer endpoint (empty disables PDF generation)

	AMQPURL string // RabbitMQ URL for event publishing (empty disables it)

	SMTPHost     string // SMTP relay host (empty disables email)
	SMTPPort     string // SMTP relay port
	SMTPUsername string // SMTP auth username
	SMTPPassword string // SMTP auth password
	MailFrom     string // confirmation sender address
	MailFromName string // confirmation sender display name
	MailBCCAdmin string // optional admin BCC address
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		AppURL: must("APP_URL"),
		Debug:  boolEnv("DEBUG"),

		AirtableAPIKey: must("AIRTABLE_API_KEY"),
		AirtableBaseID: must("AIRTABLE_BASE_ID"),

		BookingsTable:      must("AIRTABLE_BOOKINGS_TABLE"),
		RegistrationsTable: must("AIRTABLE_REGISTRATIONS_TABLE"),
		ItemsTable:         must("AIRTABLE_ITEMS_TABLE"),
		BookedItemsTable:   must("AIRTABLE_BOOKED_ITEMS_TABLE"),
		CheckInsTable:      must("AIRTABLE_CHECKINS_TABLE"),
		MemberOrgsTable:    must("AIRTABLE_MEMBER_ORGS_TABLE"),

		StripeSecretKey:     must("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
		PayPalClientID:      must("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:  must("PAYPAL_CLIENT_SECRET"),
		PayPalWebhookID:     must("PAYPAL_WEBHOOK_ID"),
		PayPalLive:          os.Getenv("PAYPAL_MODE") == "live",
		Currency:            getenvDefault("CURRENCY", "USD"),

		LinkSecret:     must("LINK_SECRET"),
		APIBearerToken: must("API_BEARER_TOKEN"),

		ConfirmationsDir:     getenvDefault("CONFIRMATIONS_DIR", "storage/confirmations"),
		ConfirmationGraceSec: intEnvDefault("CONFIRMATION_GRACE_SECONDS", 5),
		LastModifiedField:    os.Getenv("BOOKING_LAST_MODIFIED_FIELD"),

		RendererURL: os.Getenv("PDF_RENDERER_URL"),

		AMQPURL: getenvDefault("RABBITMQ_URL", os.Getenv("AMQP_URL")),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getenvDefault("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		MailFromName: getenvDefault("MAIL_FROM_NAME", "Assembly Bookings"),
		MailBCCAdmin: os.Getenv("MAIL_BCC_ADMIN"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}

func intEnvDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
