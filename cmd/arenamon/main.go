package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/robotalks/arena.go/pkg/telemetry/influx"
	"github.com/robotalks/arena.go/pkg/transport/mqtt"
)

var (
	mqttURL      = "mqtt://localhost:1883/"
	publishTopic = mqtt.DefaultPublishTopic
	influxConfig influx.Config
)

func init() {
	if val := os.Getenv("ARENA_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&publishTopic, "topic", publishTopic, "Topic the controllers publish under.")
	flag.StringVar(&influxConfig.URL, "influx", influxConfig.URL, "Record telemetry into this InfluxDB server.")
	flag.StringVar(&influxConfig.Token, "influx-token", os.Getenv("INFLUX_TOKEN"), "InfluxDB token.")
	flag.StringVar(&influxConfig.Org, "influx-org", influxConfig.Org, "InfluxDB organization.")
	flag.StringVar(&influxConfig.Bucket, "influx-bucket", "arena", "InfluxDB bucket.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	var sink *influx.Sink
	if influxConfig.URL != "" {
		s, err := influx.Dial(context.Background(), influxConfig, "mqtt")
		if err != nil {
			log.Fatalln(err)
		}
		defer s.Close()
		sink = s
	}

	q, err := mqtt.Dial(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(publishTopic+"/#", mqtt.Handler(func(topic string, payload []byte) {
		f, ok := mqtt.FrameOf(topic, payload, publishTopic)
		if !ok {
			log.Printf("%s: bad message: %q", topic, payload)
			return
		}
		log.Printf("%s: %s", f.Topic, f.Payload)
		if sink != nil {
			sink.Send(f)
		}
	}))
	<-(chan struct{})(nil)
}
