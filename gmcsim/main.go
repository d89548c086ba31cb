// Command gmcsim answers GMC1200 commands on a serial port, backed by the
// same flow simulation the panel's mock device uses. Point it at one end
// of a virtual pair (socat on Linux, com0com on Windows) and connect the
// panel to the other to exercise the whole wire path without hardware.
package main

import (
	"bufio"
	"flag"
	"log"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/gogmc/pkg/config"
	"github.com/itohio/gogmc/pkg/gmc"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port to serve (e.g., COM4 or /dev/pts/3)")
		baudFlag   = flag.Int("baud", gmc.DefaultBaudRate, "Baud rate")
		configFlag = flag.String("config", "config.yaml", "Configuration file path (mock section)")
	)
	flag.Parse()

	if *portFlag == "" {
		log.Fatal("A serial port is required, e.g. -p /dev/pts/3")
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mode := &serial.Mode{
		BaudRate: *baudFlag,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(*portFlag, mode)
	if err != nil {
		log.Fatalf("Failed to open serial port %s: %v", *portFlag, err)
	}
	defer port.Close()

	log.Printf("Simulating a GMC1200 on %s at %d 8N1", *portFlag, *baudFlag)

	sim := gmc.NewSim(&cfg.Mock)
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\r')
		if err != nil {
			log.Fatalf("Serial read failed: %v", err)
		}

		response := sim.Execute(time.Now(), line)
		log.Printf("%q -> %q", strings.TrimSpace(line), response)

		if _, err := port.Write([]byte(response + "\r")); err != nil {
			log.Fatalf("Serial write failed: %v", err)
		}
	}
}
