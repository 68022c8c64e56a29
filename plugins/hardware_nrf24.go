package plugins

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linht/nrf24-manager/nrf24"
	"github.com/linht/nrf24-manager/simchip"
)

// Radio backends
const (
	BackendSPIDev = "spidev"
	BackendSim    = "sim"
)

var (
	// ErrRadioClosed is returned by operations that need an open radio.
	ErrRadioClosed = errors.New("radio not initialized")
	// ErrRadioOpen is returned by Open when the radio is already open.
	ErrRadioOpen = errors.New("radio already initialized")
	// ErrTxFull is returned by Send when the TX FIFO had no room and the
	// chip dropped the packet.
	ErrTxFull = errors.New("tx fifo full")
)

// ModeError is returned when an operation needs another mode.
type ModeError struct {
	Want string
	Have string
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("radio is in %s mode, operation needs %s mode", e.Have, e.Want)
}

// simCE adapts the simulated chip to CEPin.
type simCE struct {
	*simchip.Chip
}

func (simCE) Close() error { return nil }
func (simCE) Info() string { return "simulated" }

// RadioController owns one nRF24L01+ and the mode it is in. The driver
// is single-owner; every method takes the controller lock.
type RadioController struct {
	mu sync.Mutex

	cfg     RadioConfig
	bus     io.Closer
	busInfo string
	ce      CEPin
	sim     *simchip.Chip
	mode    nrf24.Configurator
	profile nrf24.Profile
	opened  time.Time

	// pending holds the IDs of packets queued since the last final
	// PollSend result.
	pending []string
}

// NewRadioController returns a closed controller.
func NewRadioController(cfg RadioConfig) *RadioController {
	return &RadioController{cfg: cfg, profile: cfg.Profile.Clone()}
}

// openBackend opens the SPI bus and CE line selected by the config.
func (r *RadioController) openBackend() (nrf24.Bus, error) {
	switch r.cfg.Backend {
	case BackendSim:
		chip := simchip.New()
		chip.Lossy = r.cfg.Sim.Lossy
		if r.cfg.Sim.Loopback {
			chip.OnAir = func(addr, data []byte) {
				if !chip.Inject(0, data) {
					slog.Debug("Simulated loopback dropped packet, RX FIFO full")
				}
			}
		}
		r.sim = chip
		r.bus = io.NopCloser(nil)
		r.busInfo = "simulated"
		r.ce = simCE{chip}
		return chip, nil

	case BackendSPIDev:
		spi, err := NewSPIBus(r.cfg.SPIDevice, r.cfg.SPISpeed)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SPI: %w", err)
		}

		var ce CEPin
		switch r.cfg.CEBackend {
		case CEBackendPeriph:
			ce, err = NewPeriphCE(r.cfg.CEPin)
		default:
			if err = ValidateGPIOLine(r.cfg.GPIOChip, r.cfg.CELine); err == nil {
				ce, err = NewCELine(r.cfg.GPIOChip, r.cfg.CELine)
			}
		}
		if err != nil {
			spi.Close()
			return nil, fmt.Errorf("failed to initialize CE: %w", err)
		}

		r.bus = spi
		r.busInfo = spi.Info()
		r.ce = ce
		return spi, nil

	default:
		return nil, fmt.Errorf("unknown radio backend %q", r.cfg.Backend)
	}
}

func (r *RadioController) closeBackend() error {
	var errs []error
	if r.ce != nil {
		if err := r.ce.Close(); err != nil {
			errs = append(errs, fmt.Errorf("CE close error: %w", err))
		}
	}
	if r.bus != nil {
		if err := r.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("SPI close error: %w", err))
		}
	}
	r.ce, r.bus, r.sim = nil, nil, nil
	return errors.Join(errs...)
}

// Open takes over the chip and applies the current profile. The radio
// is left in standby.
func (r *RadioController) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != nil {
		return ErrRadioOpen
	}

	bus, err := r.openBackend()
	if err != nil {
		return err
	}

	standby, err := nrf24.New(bus, r.ce)
	if err != nil {
		r.closeBackend()
		return fmt.Errorf("failed to initialize nRF24: %w", err)
	}
	if err := r.profile.Apply(standby); err != nil {
		r.closeBackend()
		return err
	}

	r.mode = standby
	r.opened = time.Now()
	r.pending = nil
	slog.Info("Radio initialized", "backend", r.cfg.Backend, "bus", r.busInfo, "ce", r.ce.Info())
	return nil
}

// Close returns the radio to standby and releases the hardware.
func (r *RadioController) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == nil {
		return nil
	}
	if err := r.setMode(nrf24.ModeStandby); err != nil {
		slog.Warn("Radio did not reach standby before close", "error", err)
	}
	r.mode = nil
	r.pending = nil
	return r.closeBackend()
}

// Sim returns the simulated chip, or nil with real hardware.
func (r *RadioController) Sim() *simchip.Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim
}

func (r *RadioController) current() (nrf24.Configurator, error) {
	if r.mode == nil {
		return nil, ErrRadioClosed
	}
	return r.mode, nil
}

// setMode walks the mode machine to target, through standby. r.mode
// tracks every successful step, so a failure leaves it on the last
// mode reached.
func (r *RadioController) setMode(target string) error {
	if _, err := r.current(); err != nil {
		return err
	}
	for r.mode.Name() != target {
		switch m := r.mode.(type) {
		case *nrf24.RxMode:
			next, err := m.Standby()
			if err != nil {
				return err
			}
			r.mode = next
		case *nrf24.TxMode:
			next, err := m.Standby()
			if err != nil {
				return err
			}
			r.mode = next
			r.resolvePending()
		case *nrf24.StandbyMode:
			switch target {
			case nrf24.ModeRx:
				next, err := m.Rx()
				if err != nil {
					return err
				}
				r.mode = next
			case nrf24.ModeTx:
				next, err := m.Tx()
				if err != nil {
					return err
				}
				r.mode = next
			default:
				return fmt.Errorf("unknown mode %q", target)
			}
		}
	}
	return nil
}

// SetMode switches to standby, rx or tx.
func (r *RadioController) SetMode(target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch target {
	case nrf24.ModeStandby, nrf24.ModeRx, nrf24.ModeTx:
	default:
		return fmt.Errorf("invalid mode %q, use standby, rx or tx", target)
	}
	if err := r.setMode(target); err != nil {
		return err
	}
	slog.Info("Radio mode set", "mode", target)
	return nil
}

// Mode returns the current mode name, or "closed".
func (r *RadioController) Mode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == nil {
		return "closed"
	}
	return r.mode.Name()
}

// Configure applies p in the current mode and keeps it as the profile
// used by the next Open.
func (r *RadioController) Configure(p nrf24.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != nil {
		if err := p.Apply(r.mode); err != nil {
			return err
		}
	}
	r.profile = p.Clone()
	return nil
}

// Profile returns a copy of the last applied profile. Callers may modify
// it freely.
func (r *RadioController) Profile() nrf24.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile.Clone()
}

// RadioStatus is the status snapshot returned by GET /status.
type RadioStatus struct {
	Open     bool   `json:"open"`
	Backend  string `json:"backend"`
	Bus      string `json:"bus,omitempty"`
	CE       string `json:"ce,omitempty"`
	Mode     string `json:"mode"`
	Uptime   string `json:"uptime,omitempty"`
	Status   string `json:"status,omitempty"`
	RxDR     bool   `json:"rx_dr"`
	TxDS     bool   `json:"tx_ds"`
	MaxRT    bool   `json:"max_rt"`
	RxPipe   int    `json:"rx_pipe"`
	Fifo     string `json:"fifo,omitempty"`
	Channel  uint8  `json:"channel"`
	Lost     uint8  `json:"lost_packets"`
	Retries  uint8  `json:"retransmits"`
	Pending  int    `json:"pending"`
	CEActive bool   `json:"ce_active"`
}

// Status reads STATUS, FIFO_STATUS, RF_CH and OBSERVE_TX.
func (r *RadioController) Status() (RadioStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := RadioStatus{Backend: r.cfg.Backend, Mode: "closed", RxPipe: -1}
	if r.mode == nil {
		return st, nil
	}

	st.Open = true
	st.Bus = r.busInfo
	st.CE = r.ce.Info()
	st.Mode = r.mode.Name()
	st.Uptime = time.Since(r.opened).Truncate(time.Second).String()
	st.Pending = len(r.pending)

	dev := r.mode.Device()
	st.CEActive = bool(dev.CE())

	status, err := r.mode.Status()
	if err != nil {
		return st, err
	}
	st.Status = status.String()
	st.RxDR, st.TxDS, st.MaxRT = status.RxDR(), status.TxDS(), status.MaxRT()
	if pipe, ok := status.RxPipe(); ok {
		st.RxPipe = pipe
	}

	var fifo nrf24.FifoStatus
	if _, err := dev.ReadRegister(&fifo); err != nil {
		return st, err
	}
	st.Fifo = fifo.String()

	if st.Channel, err = r.mode.Frequency(); err != nil {
		return st, err
	}

	var obs nrf24.ObserveTx
	if _, err := dev.ReadRegister(&obs); err != nil {
		return st, err
	}
	st.Lost, st.Retries = obs.PlosCnt(), obs.ArcCnt()
	return st, nil
}

// RegisterValue is one line of the register dump.
type RegisterValue struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	Decoded     string `json:"decoded"`
	Description string `json:"description"`
}

// Registers reads every register in registerMap.
func (r *RadioController) Registers() ([]RegisterValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode, err := r.current()
	if err != nil {
		return nil, err
	}
	width, err := mode.AddressWidth()
	if err != nil {
		return nil, err
	}

	dev := mode.Device()
	regs := make([]RegisterValue, 0, len(registerMap))
	for _, e := range registerMap {
		reg := e.newReg(int(width))
		if _, err := dev.ReadRegister(reg); err != nil {
			return nil, fmt.Errorf("failed to read register 0x%02X: %w", e.Addr, err)
		}
		regs = append(regs, RegisterValue{
			Address:     fmt.Sprintf("0x%02X", e.Addr),
			Name:        e.Name,
			Value:       fmt.Sprintf("%X", nrf24.Encode(reg)),
			Decoded:     fmt.Sprint(reg),
			Description: e.Desc,
		})
	}
	return regs, nil
}

// Send queues one packet and returns its transmission ID.
func (r *RadioController) Send(data []byte) (string, error) {
	if len(data) == 0 || len(data) > nrf24.MaxPayload {
		return "", fmt.Errorf("payload length %d out of range (1-%d bytes)", len(data), nrf24.MaxPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.txMode()
	if err != nil {
		return "", err
	}
	status, err := tx.Send(data)
	if err != nil {
		return "", err
	}
	// STATUS is clocked out before the payload, so TX_FULL here means the
	// write was discarded.
	if status.TxFull() {
		return "", ErrTxFull
	}

	id := uuid.New().String()
	r.pending = append(r.pending, id)
	slog.Debug("Packet queued", "id", id, "len", len(data))
	return id, nil
}

// SendOutcome is the result of one PollSend, with the transmissions it
// settled.
type SendOutcome struct {
	Result string   `json:"result"`
	IDs    []string `json:"ids,omitempty"`
}

// Poll runs one PollSend.
func (r *RadioController) Poll() (SendOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.txMode()
	if err != nil {
		return SendOutcome{}, err
	}
	return r.poll(tx)
}

func (r *RadioController) poll(tx *nrf24.TxMode) (SendOutcome, error) {
	res, err := tx.PollSend()
	if err != nil {
		return SendOutcome{}, err
	}
	out := SendOutcome{Result: res.String()}
	if res != nrf24.SendPending {
		// A failure flushes the whole FIFO, so every pending packet is
		// settled with the same result.
		out.IDs = r.pending
		r.pending = nil
	}
	if res == nrf24.SendFailed {
		slog.Warn("Transmission failed, retransmit limit reached", "packets", len(out.IDs))
	}
	return out, nil
}

// resolvePending forgets pending IDs once TX is left; Standby waited
// for the FIFO to drain.
func (r *RadioController) resolvePending() {
	r.pending = nil
}

func (r *RadioController) txMode() (*nrf24.TxMode, error) {
	mode, err := r.current()
	if err != nil {
		return nil, err
	}
	tx, ok := mode.(*nrf24.TxMode)
	if !ok {
		return nil, &ModeError{Want: nrf24.ModeTx, Have: mode.Name()}
	}
	return tx, nil
}

func (r *RadioController) rxMode() (*nrf24.RxMode, error) {
	mode, err := r.current()
	if err != nil {
		return nil, err
	}
	rx, ok := mode.(*nrf24.RxMode)
	if !ok {
		return nil, &ModeError{Want: nrf24.ModeRx, Have: mode.Name()}
	}
	return rx, nil
}

// Read takes one payload off the RX FIFO.
func (r *RadioController) Read() (*nrf24.Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rx, err := r.rxMode()
	if err != nil {
		return nil, err
	}
	return rx.Read()
}

// Flush empties the TX or RX FIFO.
func (r *RadioController) Flush(fifo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode, err := r.current()
	if err != nil {
		return err
	}
	switch fifo {
	case "tx":
		if err := mode.FlushTx(); err != nil {
			return err
		}
		r.pending = nil
	case "rx":
		if err := mode.FlushRx(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid FIFO %q, use tx or rx", fifo)
	}
	slog.Info("FIFO flushed", "fifo", fifo)
	return nil
}

// ClearInterrupts clears RX_DR, TX_DS and MAX_RT.
func (r *RadioController) ClearInterrupts() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode, err := r.current()
	if err != nil {
		return err
	}
	return mode.ClearInterrupts()
}

// service is one receive pump step: drain the RX FIFO in RX mode, poll
// pending packets in TX mode.
func (r *RadioController) service() ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []Event
	switch m := r.mode.(type) {
	case *nrf24.RxMode:
		for {
			p, err := m.Read()
			if errors.Is(err, nrf24.ErrRxEmpty) {
				return events, nil
			}
			if err != nil {
				return events, err
			}
			events = append(events, packetEvent(p))
		}
	case *nrf24.TxMode:
		if len(r.pending) == 0 {
			return nil, nil
		}
		out, err := r.poll(m)
		if err != nil {
			return nil, err
		}
		if out.Result != nrf24.SendPending.String() {
			events = append(events, sendEvent(out))
		}
	}
	return events, nil
}
