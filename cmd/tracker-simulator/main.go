// Command tracker-simulator emulates a solar tracker over TCP.  It
// accepts connections and emits newline-terminated JSON telemetry lines,
// with occasional status messages and malformed lines mixed in to
// exercise the server's parser.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"time"
)

// TrackerPacket matches the line protocol the server ingests
type TrackerPacket struct {
	Voltage   float64 `json:"voltage"`
	Current   float64 `json:"current"`
	Power     float64 `json:"power"`
	AngleH    int     `json:"angleH"`
	AngleV    int     `json:"angleV"`
	Light     int     `json:"light"`
	DustAlert bool    `json:"dustAlert"`
	DustRaw   int     `json:"dustRaw"`
}

func main() {
	var (
		port     = flag.String("port", "9100", "TCP port to listen on")
		interval = flag.Duration("interval", 2*time.Second, "Interval between readings")
		noise    = flag.Bool("noise", false, "Occasionally emit status and malformed lines")
	)
	flag.Parse()

	log.Printf("Solar Tracker Emulator")
	log.Printf("Listening on port %s, sending data every %v", *port, *interval)

	listener, err := net.Listen("tcp", ":"+*port)
	if err != nil {
		log.Fatal("Failed to listen:", err)
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		log.Printf("Client connected from %s", conn.RemoteAddr())
		go handleConnection(conn, *interval, *noise)
	}
}

func handleConnection(conn net.Conn, interval time.Duration, noise bool) {
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "{\"status\":\"tracker online\"}\n"); err != nil {
		log.Printf("Failed to send banner: %v", err)
		return
	}

	encoder := json.NewEncoder(conn)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if noise && rand.Float64() < 0.05 {
			if err := sendNoiseLine(conn); err != nil {
				log.Printf("Failed to send line: %v", err)
				return
			}
			continue
		}

		packet := generateRealisticReading()
		if err := encoder.Encode(packet); err != nil {
			log.Printf("Failed to send packet: %v", err)
			return
		}
		log.Printf("Sent: %.2fW at %d°/%d°, light=%d%%, dust=%d",
			packet.Power, packet.AngleH, packet.AngleV, packet.Light, packet.DustRaw)
	}
}

func sendNoiseLine(conn net.Conn) error {
	lines := []string{
		"{\"status\":\"repositioning\"}\n",
		"{\"error\":\"LDR read timeout\"}\n",
		"### tracker debug ###\n",
		"{\"voltage\":5.0,\"current\":\n",
	}
	_, err := fmt.Fprint(conn, lines[rand.Intn(len(lines))])
	return err
}

func generateRealisticReading() TrackerPacket {
	now := time.Now()
	hour := float64(now.Hour()) + float64(now.Minute())/60

	// Light and power follow the sun; flat zero overnight.
	var sunAngle float64
	if hour >= 6 && hour <= 18 {
		sunAngle = math.Sin(math.Pi * (hour - 6) / 12)
	}

	light := int(sunAngle*90 + rand.Float64()*10)
	voltage := 4.0 + sunAngle*2.5 + rand.Float64()*0.3 // 4.0-6.8V panel output
	current := sunAngle*1800 + rand.Float64()*100      // mA
	power := voltage * current / 1000

	// The horizontal axis sweeps east to west through the day.
	angleH := int(30 + (hour-6)/12*120)
	if angleH < 30 {
		angleH = 30
	}
	if angleH > 150 {
		angleH = 150
	}
	angleV := 60 + int(sunAngle*40) + rand.Intn(5)

	dustRaw := 500 + rand.Intn(400)
	if rand.Float64() < 0.03 {
		dustRaw = 2500 + rand.Intn(500)
	}

	return TrackerPacket{
		Voltage:   math.Round(voltage*100) / 100,
		Current:   math.Round(current*10) / 10,
		Power:     math.Round(power*1000) / 1000,
		AngleH:    angleH,
		AngleV:    angleV,
		Light:     light,
		DustAlert: dustRaw > 2400,
		DustRaw:   dustRaw,
	}
}
