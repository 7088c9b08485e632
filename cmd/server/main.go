package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/otworld/assembly-bookings/internal/airtable"
	"github.com/otworld/assembly-bookings/internal/booking"
	"github.com/otworld/assembly-bookings/internal/config"
	"github.com/otworld/assembly-bookings/internal/confirmation"
	"github.com/otworld/assembly-bookings/internal/handler"
	"github.com/otworld/assembly-bookings/internal/mailer"
	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/payment"
	"github.com/otworld/assembly-bookings/internal/pdf"
	"github.com/otworld/assembly-bookings/internal/queue"
	"github.com/otworld/assembly-bookings/internal/repository"
	"github.com/otworld/assembly-bookings/internal/router"
	"github.com/otworld/assembly-bookings/internal/token"
	"github.com/otworld/assembly-bookings/internal/webhook"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	store := airtable.New(cfg.AirtableAPIKey, cfg.AirtableBaseID, cfg.Debug)

	bookings := repository.NewBookingRepo(store, cfg.BookingsTable)
	registrations := repository.NewRegistrationRepo(store, cfg.RegistrationsTable)
	items := repository.NewItemRepo(store, cfg.ItemsTable)
	bookedItems := repository.NewBookedItemRepo(store, cfg.BookedItemsTable)
	checkIns := repository.NewCheckInRepo(store, cfg.CheckInsTable)
	memberOrgs := repository.NewMemberOrgRepo(store, cfg.MemberOrgsTable)

	signer := token.NewSigner(cfg.LinkSecret)

	gateways := map[model.PaymentMethod]payment.Gateway{
		model.MethodStripe: payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		model.MethodPayPal: payment.NewPayPalGateway(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalWebhookID, cfg.PayPalLive),
	}

	var renderer pdf.Renderer
	if cfg.RendererURL != "" {
		renderer = pdf.NewHTTPRenderer(cfg.RendererURL)
	}
	mail := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
		BCCAdmin: cfg.MailBCCAdmin,
		AppURL:   cfg.AppURL,
	})

	cache := confirmation.NewCache(cfg.ConfirmationsDir, cfg.ConfirmationGraceSec, cfg.LastModifiedField)
	var generator *confirmation.Generator
	if renderer != nil {
		generator = confirmation.NewGenerator(bookings, registrations, bookedItems, memberOrgs, renderer, mail, signer, cache, cfg.AppURL, cfg.Currency)
	} else {
		log.Println("[SERVER] no PDF renderer configured, confirmation documents disabled")
	}

	publisher := queue.NewPublisher(cfg.AMQPURL)

	var gen booking.ConfirmationGenerator
	if generator != nil {
		gen = generator
	}
	svc := booking.NewService(bookings, items, bookedItems, gen, gateways, publisher, cfg.Currency)
	processor := webhook.NewProcessor(gateways, svc)

	bookingHandler := handler.NewBookingHandler(registrations, bookings, items, bookedItems, svc, processor, generator, signer)
	attendeeHandler := handler.NewAttendeeHandler(registrations, bookings, bookedItems, checkIns, memberOrgs, signer, cfg.AppURL)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 90 * time.Second

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("[SERVER] redis unavailable, rate limiting and caching disabled")
	}
	router.Register(e, bookingHandler, attendeeHandler, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
