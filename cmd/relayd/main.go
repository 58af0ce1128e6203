package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/snsy/gas-station-monitor/internal/config"
	"github.com/snsy/gas-station-monitor/internal/database"
	"github.com/snsy/gas-station-monitor/internal/ingest"
	"github.com/snsy/gas-station-monitor/internal/relay"
	"github.com/snsy/gas-station-monitor/internal/repository"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	repos := repository.New(db)

	// Unique client id; brokers drop duplicate connections.
	clientID := fmt.Sprintf("gas-station-relay-%s", uuid.NewString()[:8])
	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBroker()).
		SetClientID(clientID).
		SetUsername(config.MQTTUsername()).
		SetPassword(config.MQTTPassword()).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	registrar := relay.NewRegistrar(repos.Devices, log.Logger)
	engine := relay.NewEngine(
		registrar,
		repos.Devices,
		repos.Alarms,
		repos.CommLogs,
		relay.MQTTPublisher{Client: client, QoS: config.MQTTQoS(), Timeout: config.MQTTPublishTimeout()},
		relay.Topics{IndoorSub: config.IndoorSubPrefix(), OutdoorSub: config.OutdoorSubPrefix()},
		log.Logger,
	)
	decoder := ingest.Decoder{
		IndoorPrefix:  config.IndoorPubPrefix(),
		OutdoorPrefix: config.OutdoorPubPrefix(),
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		ev, err := decoder.Decode(msg.Topic(), msg.Payload())
		if err != nil {
			// Malformed input drops the message; the stream keeps going.
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("message dropped")
			return
		}
		if err := engine.Handle(context.Background(), ev); err != nil {
			log.Error().Err(err).Str("imei", ev.IMEI).Msg("relay failed")
		}
	}

	for _, filter := range []string{
		config.IndoorPubPrefix() + "+",
		config.OutdoorPubPrefix() + "+",
	} {
		if token := client.Subscribe(filter, config.MQTTQoS(), handler); token.Wait() && token.Error() != nil {
			log.Fatal().Err(token.Error()).Str("filter", filter).Msg("subscribe failed")
		}
		log.Info().Str("filter", filter).Msg("subscribed")
	}

	log.Info().Str("client_id", clientID).Msg("relay running; Ctrl+C to stop")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
}
