package main

import (
	bookinghandler "turfbook/internal/bookings/handler"
	bookingrepo "turfbook/internal/bookings/repository"
	bookingservice "turfbook/internal/bookings/service"
	"turfbook/internal/bookings/validator"
	slothandler "turfbook/internal/slots/handler"
	slotrepo "turfbook/internal/slots/repository"
	slotservice "turfbook/internal/slots/service"
	"turfbook/pkg/app"
	"turfbook/pkg/config"
	"turfbook/pkg/kafka"
	kafka_config "turfbook/pkg/kafka/config"
	"turfbook/pkg/retry"
)

const ServiceName = "turfbook"

func main() {
	cfg := config.Load(ServiceName)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	// Log all configuration values
	cfg.LogConfiguration()

	cfg.Log.Info("Starting turfbook service")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	producer := initProducer(cfg)
	if producer != nil {
		defer producer.Close()
	}

	slotService, bookingService := initServices(cfg, producer)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		slothandler.NewSlotHandler(slotService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, producer *kafka.Producer) (slotservice.SlotService, bookingservice.BookingService) {
	retryer := retry.New(retry.Config{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxJitter:   cfg.RetryMaxJitter,
		Log:         cfg.Log,
	})

	slotRepo := slotrepo.NewMongoSlotRepository(cfg)
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	bookingValidator := validator.NewBookingValidator(cfg.Log)

	slotService := slotservice.NewSlotService(slotRepo, retryer, producer, cfg)
	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		slotRepo,
		bookingValidator,
		retryer,
		producer,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return slotService, bookingService
}

func initProducer(cfg *config.Config) *kafka.Producer {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled")
		return nil
	}

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize Kafka producer", "error", err)
	}

	cfg.Log.Info("Kafka producer initialized", "topic", cfg.BookingEventsTopic)
	return producer
}
