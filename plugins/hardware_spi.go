package plugins

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// nRF24L01+ accepts up to 10MHz on SPI.
const maxSPISpeed = 10000000

// SPIBus is the nRF24 SPI link through periph.io. It satisfies nrf24.Bus.
type SPIBus struct {
	conn   spi.Conn
	port   spi.PortCloser
	device string
	speed  physic.Frequency
}

// NewSPIBus opens an SPI port and connects to it in mode 0, 8 bit words.
func NewSPIBus(device string, speed uint32) (*SPIBus, error) {
	if speed == 0 || speed > maxSPISpeed {
		return nil, fmt.Errorf("SPI speed %d Hz out of range (1-%d Hz)", speed, maxSPISpeed)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI device %s: %w", device, err)
	}

	// nRF24L01+ samples on the rising edge with the clock idle low (mode 0)
	conn, err := port.Connect(physic.Frequency(speed)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to SPI device: %w", err)
	}

	return &SPIBus{
		conn:   conn,
		port:   port,
		device: device,
		speed:  physic.Frequency(speed) * physic.Hertz,
	}, nil
}

// Tx performs one full-duplex transfer with CSN held low throughout.
func (s *SPIBus) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("tx and rx buffers must be the same length")
	}
	if s.conn == nil {
		return fmt.Errorf("SPI device not open")
	}
	return s.conn.Tx(w, r)
}

// Close closes the SPI port.
func (s *SPIBus) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.conn = nil
	return err
}

// Info describes the link for status responses.
func (s *SPIBus) Info() string {
	if s.conn == nil {
		return fmt.Sprintf("%s (closed)", s.device)
	}
	return fmt.Sprintf("%s @ %s", s.device, s.speed)
}

// ValidateSPIDevice checks that the device can be opened.
func ValidateSPIDevice(device string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	port, err := spireg.Open(device)
	if err != nil {
		return fmt.Errorf("SPI device %s not accessible: %w", device, err)
	}
	defer port.Close()

	return nil
}
