// Command walkie-textie is the composition root: it wires the radio,
// both transports, the command queue and the response bus, and runs
// until SIGINT/SIGTERM. Grounded on the teacher's cmd/bluetooth-service
// main.go (flag declarations, sequential startup, signal handling).
package main

import (
	"crypto/rand"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/librescoot/walkie-textie/pkg/dispatcher"
	serialtransport "github.com/librescoot/walkie-textie/pkg/transport/serial"

	bletransport "github.com/librescoot/walkie-textie/pkg/transport/ble"

	"github.com/librescoot/walkie-textie/pkg/protocol"
	"github.com/librescoot/walkie-textie/pkg/sx1262"
)

var (
	serialDevice = flag.String("serial", "/dev/ttyACM0", "USB virtual serial device path")
	baudRate     = flag.Int("baud", serialtransport.DefaultBaudRate, "Serial baud rate")
	spiDevice    = flag.String("spi", "/dev/spidev0.0", "SX1262 SPI device path")
	spiSpeedHz   = flag.Int("spi-speed", 8_000_000, "SX1262 SPI clock speed in Hz")
	pinNSS       = flag.String("pin-nss", "GPIO8", "SX1262 NSS (chip select) pin name")
	pinNRST      = flag.String("pin-nrst", "GPIO22", "SX1262 NRST pin name")
	pinBUSY      = flag.String("pin-busy", "GPIO23", "SX1262 BUSY pin name")
	pinDIO1      = flag.String("pin-dio1", "GPIO24", "SX1262 DIO1 pin name")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("starting walkie-textie")

	if _, err := host.Init(); err != nil {
		log.Fatalf("periph host init: %v", err)
	}

	radio, err := openRadio()
	if err != nil {
		log.Fatalf("opening radio: %v", err)
	}

	cfg := protocol.DefaultRadioConfig()
	log.Printf("initialising SX1262 with %+v", cfg)
	if err := radio.Init(cfg); err != nil {
		log.Fatalf("radio init: %v", err)
	}

	commands := dispatcher.NewCommandQueue()
	reboot := make(chan struct{}, 1)
	bus := dispatcher.NewBus()
	stop := make(chan struct{})

	port, err := serialtransport.Open(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("opening serial device %s: %v", *serialDevice, err)
	}
	defer port.Close()
	serialT := serialtransport.New(port, protocol.SourceSerial, commands, reboot, bus)
	go serialT.RunReader(stop)
	go serialT.RunWriter(stop)
	log.Printf("serial transport ready on %s", *serialDevice)

	bleT := bletransport.New(commands, reboot, bus)
	deviceID, err := randomDeviceID()
	if err != nil {
		log.Fatalf("deriving device id: %v", err)
	}
	if err := bleT.Start(deviceID); err != nil {
		log.Fatalf("starting BLE transport: %v", err)
	}
	go bleT.RunWriter(stop)
	log.Printf("BLE transport ready, advertising as %s", bletransport.AdvertisingName(deviceID))

	go dispatcher.RunRadioTask(radio, commands, bus, stop)
	log.Printf("radio task running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			log.Printf("shutting down")
			close(stop)
			return
		case <-reboot:
			// Mirrors original_source/src/tasks/admin.rs's admin_task: let a
			// brief window pass for any in-flight log/notify writes to flush,
			// then stop every task and return from main, ending the process.
			// There is no persisted state to save.
			log.Printf("reboot requested, exiting in 500ms")
			time.Sleep(500 * time.Millisecond)
			close(stop)
			return
		}
	}
}

func openRadio() (*sx1262.Device, error) {
	spiPort, err := spireg.Open(*spiDevice)
	if err != nil {
		return nil, err
	}
	conn, err := spiPort.Connect(physic.Frequency(*spiSpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	nss := gpioreg.ByName(*pinNSS)
	if nss == nil {
		return nil, errPin(*pinNSS)
	}
	if err := nss.Out(gpio.High); err != nil {
		return nil, err
	}
	nrst := gpioreg.ByName(*pinNRST)
	if nrst == nil {
		return nil, errPin(*pinNRST)
	}
	busy := gpioreg.ByName(*pinBUSY)
	if busy == nil {
		return nil, errPin(*pinBUSY)
	}
	if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, err
	}
	dio1 := gpioreg.ByName(*pinDIO1)
	if dio1 == nil {
		return nil, errPin(*pinDIO1)
	}
	if err := dio1.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, err
	}

	logger := slog.Default()
	return sx1262.New(conn, nrst, busy, dio1, logger), nil
}

type pinError string

func (p pinError) Error() string { return "walkie-textie: unknown gpio pin " + string(p) }

func errPin(name string) error { return pinError(name) }

// randomDeviceID derives the 3-byte id used for the BLE advertising name
// (spec.md §4.10); the adapter's address is not set from it. The spec leaves its source
// unspecified beyond "the device MAC"; on a host without a stable radio
// MAC to read, a process-lifetime random value is the closest equivalent.
func randomDeviceID() ([3]byte, error) {
	var id [3]byte
	_, err := rand.Read(id[:])
	return id, err
}
