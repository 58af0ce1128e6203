package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/snsy/gas-station-monitor/internal/config"
)

func main() {
	imei := flag.String("imei", "864793080106318", "device imei to impersonate")
	role := flag.String("role", "indoor", "indoor or outdoor")
	count := flag.Int("count", 10, "messages to publish")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBroker()).
		SetClientID("gas-station-sim-" + uuid.NewString()[:8]).
		SetUsername(config.MQTTUsername()).
		SetPassword(config.MQTTPassword())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	topic := config.IndoorPubPrefix() + *imei
	if *role == "outdoor" {
		topic = config.OutdoorPubPrefix() + *imei
	}

	for i := 0; i < *count; i++ {
		var payload []byte
		if *role == "indoor" {
			// Alternate alarm and cancel.
			payload, _ = json.Marshal(map[string]any{"bj": i % 2})
		} else {
			payload, _ = json.Marshal(map[string]any{"vbat": 3200 + rand.Float64()*600})
		}
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		log.Info().Str("topic", topic).RawJSON("payload", payload).Msg("published")
		time.Sleep(500 * time.Millisecond)
	}
	log.Info().Msg("simulation done")
}
