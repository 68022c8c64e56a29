package plugins

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/linht/nrf24-manager/nrf24"
)

// Defaults applied by NewRadioPlugin
const (
	DefaultSPIDevice    = "/dev/spidev0.0"
	DefaultSPISpeed     = 4000000
	DefaultGPIOChip     = "/dev/gpiochip0"
	DefaultCELine       = 25
	DefaultPollInterval = 20 * time.Millisecond

	// sseHeartbeat is how often an idle event stream is written to, so
	// that clients that went away are noticed.
	sseHeartbeat = 15 * time.Second
)

// RadioConfig is the radio section of config.yaml.
type RadioConfig struct {
	Backend      string        `yaml:"backend" json:"backend"`
	SPIDevice    string        `yaml:"spi_device" json:"spi_device"`
	SPISpeed     uint32        `yaml:"spi_speed" json:"spi_speed"`
	CEBackend    string        `yaml:"ce_backend" json:"ce_backend"`
	GPIOChip     string        `yaml:"gpio_chip" json:"gpio_chip"`
	CELine       int           `yaml:"ce_line" json:"ce_line"`
	CEPin        string        `yaml:"ce_pin" json:"ce_pin"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	AutoInit     bool          `yaml:"auto_init" json:"auto_init"`

	// ProfilesPath, when set, is the profile file the profile route and
	// the profiles plugin read.
	ProfilesPath string        `yaml:"profiles_path" json:"profiles_path"`
	Profile      nrf24.Profile `yaml:"profile" json:"profile"`

	Sim struct {
		Loopback bool `yaml:"loopback" json:"loopback"`
		Lossy    bool `yaml:"lossy" json:"lossy"`
	} `yaml:"sim" json:"sim"`

	Redis struct {
		Addr   string `yaml:"addr" json:"addr"`
		Prefix string `yaml:"prefix" json:"prefix"`
	} `yaml:"redis" json:"redis"`
}

// withDefaults fills unset fields.
func (cfg RadioConfig) withDefaults() RadioConfig {
	if cfg.Backend == "" {
		cfg.Backend = BackendSPIDev
	}
	if cfg.SPIDevice == "" {
		cfg.SPIDevice = DefaultSPIDevice
	}
	if cfg.SPISpeed == 0 {
		cfg.SPISpeed = DefaultSPISpeed
	}
	if cfg.CEBackend == "" {
		cfg.CEBackend = CEBackendGPIOCDev
	}
	if cfg.GPIOChip == "" {
		cfg.GPIOChip = DefaultGPIOChip
	}
	if cfg.CELine == 0 && cfg.CEPin == "" {
		cfg.CELine = DefaultCELine
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Profile.AddressWidth == 0 {
		cfg.Profile = nrf24.DefaultProfile()
	}
	return cfg
}

// RadioPlugin exposes one nRF24L01+ over HTTP. Unlike a transient
// controller per request, the radio stays open between requests because
// the mode it is in is state.
type RadioPlugin struct {
	config   RadioConfig
	ctrl     *RadioController
	hub      *eventHub
	pump     *pump
	sink     PacketSink
	profiles *ProfileStore

	tokenValidator TokenValidator
}

// NewRadioPlugin creates a new radio plugin instance
func NewRadioPlugin(cfg RadioConfig) (*RadioPlugin, error) {
	cfg = cfg.withDefaults()

	switch cfg.Backend {
	case BackendSPIDev, BackendSim:
	default:
		return nil, fmt.Errorf("invalid radio backend %q, use %s or %s", cfg.Backend, BackendSPIDev, BackendSim)
	}
	switch cfg.CEBackend {
	case CEBackendGPIOCDev, CEBackendPeriph:
	default:
		return nil, fmt.Errorf("invalid CE backend %q, use %s or %s", cfg.CEBackend, CEBackendGPIOCDev, CEBackendPeriph)
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid radio profile: %w", err)
	}

	p := &RadioPlugin{
		config: cfg,
		ctrl:   NewRadioController(cfg),
		hub:    newEventHub(),
	}

	if cfg.ProfilesPath != "" {
		store, err := NewProfileStore(cfg.ProfilesPath)
		if err != nil {
			return nil, err
		}
		p.profiles = store
	}

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		sink, err := NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.Prefix)
		cancel()
		if err != nil {
			return nil, err
		}
		p.sink = sink
	}

	slog.Info("Radio plugin initializing",
		"backend", cfg.Backend,
		"spi_device", cfg.SPIDevice,
		"spi_speed", cfg.SPISpeed,
		"ce_backend", cfg.CEBackend,
		"channel", cfg.Profile.Channel,
		"poll_interval", cfg.PollInterval)

	if cfg.Backend == BackendSPIDev {
		p.preflight()
	}

	if cfg.AutoInit {
		if err := p.ctrl.Open(); err != nil {
			slog.Error("Radio auto init failed", "error", err)
		}
	}

	p.pump = &pump{ctrl: p.ctrl, hub: p.hub, sink: p.sink, interval: cfg.PollInterval}
	p.pump.start()
	return p, nil
}

// preflight logs configuration problems that would make init fail.
func (p *RadioPlugin) preflight() {
	cfg := p.config
	if err := ValidateSPIDevice(cfg.SPIDevice); err != nil {
		slog.Warn("SPI device check failed", "error", err)
	}
	if cfg.CEBackend == CEBackendGPIOCDev {
		if err := ValidateGPIOChip(cfg.GPIOChip); err != nil {
			slog.Warn("GPIO chip check failed", "error", err)
		}
	}
}

// Controller returns the radio controller.
func (p *RadioPlugin) Controller() *RadioController {
	return p.ctrl
}

// SetTokenValidator sets the token validation function
func (p *RadioPlugin) SetTokenValidator(validator TokenValidator) {
	p.tokenValidator = validator
}

// Name returns the plugin identifier
func (p *RadioPlugin) Name() string {
	return "radio"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *RadioPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/radio")

	// Device control endpoints
	api.Post("/init", p.handleInit)
	api.Post("/close", p.handleClose)
	api.Get("/status", p.handleStatus)
	api.Get("/info", p.handleInfo)
	api.Get("/registers", p.handleRegisters)

	// Mode and configuration endpoints
	api.Get("/mode", p.handleGetMode)
	api.Post("/mode", p.handleSetMode)
	api.Get("/config", p.handleGetConfig)
	api.Post("/config", p.handleSetConfig)
	api.Post("/profile/:name", p.handleLoadProfile)

	// Packet endpoints
	api.Post("/send", p.handleSend)
	api.Post("/poll", p.handlePoll)
	api.Post("/flush", p.handleFlush)
	api.Post("/interrupts/clear", p.handleClearInterrupts)
	api.Get("/read", p.handleRead)

	// Event streams
	api.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/stream", websocket.New(p.handleStream))
	api.Get("/events", p.handleEvents)

	slog.Info("Radio plugin routes registered")
}

// Shutdown stops the pump and closes the radio
func (p *RadioPlugin) Shutdown() error {
	p.pump.stop()
	p.hub.closeAll()

	var errs []error
	if err := p.ctrl.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.sink != nil {
		if err := p.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// errorStatus maps controller errors to HTTP status codes.
func errorStatus(err error) int {
	var modeErr *ModeError
	switch {
	case errors.Is(err, ErrRadioClosed), errors.Is(err, ErrRadioOpen), errors.Is(err, ErrTxFull), errors.As(err, &modeErr):
		return 409
	case errors.Is(err, nrf24.ErrRxEmpty):
		return 404
	case errors.Is(err, nrf24.ErrNotConnected):
		return 503
	case errors.Is(err, ErrProfileNotFound):
		return 404
	default:
		return 500
	}
}

// Device control handlers

func (p *RadioPlugin) handleInit(c *fiber.Ctx) error {
	if err := p.ctrl.Open(); err != nil {
		slog.Error("Failed to initialize radio", "error", err)
		return SendFailure(c, err)
	}

	status, err := p.ctrl.Status()
	if err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, status, "Radio initialized")
}

func (p *RadioPlugin) handleClose(c *fiber.Ctx) error {
	if err := p.ctrl.Close(); err != nil {
		slog.Error("Failed to close radio", "error", err)
		return SendError(c, 500, err)
	}

	slog.Info("Radio closed")
	return SendSuccess(c, nil, "Radio closed")
}

func (p *RadioPlugin) handleStatus(c *fiber.Ctx) error {
	status, err := p.ctrl.Status()
	if err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, status, "")
}

func (p *RadioPlugin) handleInfo(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.Map{
		"config":      p.config,
		"subscribers": p.hub.count(),
		"sink":        p.sink != nil,
	}, "")
}

func (p *RadioPlugin) handleRegisters(c *fiber.Ctx) error {
	regs, err := p.ctrl.Registers()
	if err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, fiber.Map{
		"registers": regs,
		"count":     len(regs),
	}, "")
}

// Mode and configuration handlers

func (p *RadioPlugin) handleGetMode(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.Map{"mode": p.ctrl.Mode()}, "")
}

func (p *RadioPlugin) handleSetMode(c *fiber.Ctx) error {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	switch req.Mode {
	case nrf24.ModeStandby, nrf24.ModeRx, nrf24.ModeTx:
	default:
		return SendErrorMessage(c, 400, "Invalid mode. Use: standby, rx or tx")
	}

	if err := p.ctrl.SetMode(req.Mode); err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, fiber.Map{"mode": p.ctrl.Mode()}, "Mode set successfully")
}

func (p *RadioPlugin) handleGetConfig(c *fiber.Ctx) error {
	profile := p.ctrl.Profile()

	if c.Query("format") == "json" {
		return SendSuccess(c, profile, "")
	}

	data, err := yaml.Marshal(&profile)
	if err != nil {
		return SendError(c, 500, fmt.Errorf("failed to serialize profile: %w", err))
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.Send(data)
}

// handleSetConfig applies a partial profile: fields missing from the
// body keep their current value.
func (p *RadioPlugin) handleSetConfig(c *fiber.Ctx) error {
	profile := p.ctrl.Profile()
	if err := json.Unmarshal(c.Body(), &profile); err != nil {
		return SendError(c, 400, fmt.Errorf("invalid request body: %w", err))
	}
	if err := profile.Validate(); err != nil {
		return SendError(c, 400, err)
	}

	if err := p.ctrl.Configure(profile); err != nil {
		slog.Error("Failed to apply profile", "error", err)
		return SendFailure(c, err)
	}

	slog.Info("Radio profile applied", "channel", profile.Channel, "data_rate", profile.DataRate)
	return SendSuccess(c, profile, "Profile applied successfully")
}

func (p *RadioPlugin) handleLoadProfile(c *fiber.Ctx) error {
	if p.profiles == nil {
		return SendErrorMessage(c, 404, "No profiles file configured")
	}

	name := c.Params("name")
	profile, err := p.profiles.Load(name)
	if err != nil {
		return SendFailure(c, err)
	}
	if err := p.ctrl.Configure(profile); err != nil {
		return SendFailure(c, err)
	}

	slog.Info("Radio profile loaded", "name", name)
	return SendSuccess(c, profile, fmt.Sprintf("Profile %s applied", name))
}

// Packet handlers

// decodePayload reads the data field as hex, or as raw text with
// encoding "text".
func decodePayload(data, encoding string) ([]byte, error) {
	switch encoding {
	case "", "hex":
		b, err := hex.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return b, nil
	case "text":
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("invalid encoding %q, use hex or text", encoding)
	}
}

func (p *RadioPlugin) handleSend(c *fiber.Ctx) error {
	var req struct {
		Data     string `json:"data"`
		Encoding string `json:"encoding"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	payload, err := decodePayload(req.Data, req.Encoding)
	if err != nil {
		return SendError(c, 400, err)
	}
	if len(payload) == 0 || len(payload) > nrf24.MaxPayload {
		return SendErrorMessage(c, 400, fmt.Sprintf("Payload must be 1-%d bytes", nrf24.MaxPayload))
	}

	id, err := p.ctrl.Send(payload)
	if err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, fiber.Map{
		"id":     id,
		"length": len(payload),
	}, "Packet queued")
}

func (p *RadioPlugin) handlePoll(c *fiber.Ctx) error {
	out, err := p.ctrl.Poll()
	if err != nil {
		return SendFailure(c, err)
	}
	if out.Result != nrf24.SendPending.String() {
		ev := sendEvent(out)
		p.hub.publish(ev)
		if p.sink != nil {
			if err := p.sink.Store(c.Context(), ev); err != nil {
				slog.Warn("Packet sink store failed", "error", err)
			}
		}
	}
	return SendSuccess(c, out, "")
}

func (p *RadioPlugin) handleFlush(c *fiber.Ctx) error {
	var req struct {
		FIFO string `json:"fifo"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	if req.FIFO != "tx" && req.FIFO != "rx" {
		return SendErrorMessage(c, 400, "Invalid FIFO. Use: tx or rx")
	}

	if err := p.ctrl.Flush(req.FIFO); err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, nil, fmt.Sprintf("%s FIFO flushed", req.FIFO))
}

func (p *RadioPlugin) handleClearInterrupts(c *fiber.Ctx) error {
	if err := p.ctrl.ClearInterrupts(); err != nil {
		return SendFailure(c, err)
	}
	return SendSuccess(c, nil, "Interrupts cleared")
}

func (p *RadioPlugin) handleRead(c *fiber.Ctx) error {
	payload, err := p.ctrl.Read()
	if err != nil {
		return SendFailure(c, err)
	}
	ev := packetEvent(payload)
	return SendSuccess(c, ev, "")
}

// Stream handlers

func (p *RadioPlugin) authorized(token string) bool {
	return p.tokenValidator == nil || p.tokenValidator(token)
}

// handleStream pushes events as JSON text frames until the client goes
// away or the plugin shuts down.
func (p *RadioPlugin) handleStream(c *websocket.Conn) {
	id, events := p.hub.subscribe()
	defer p.hub.unsubscribe(id)

	// Reader: detects the client closing the connection.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	c.WriteJSON(fiber.Map{"type": "hello", "id": id, "mode": p.ctrl.Mode()})

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// handleEvents is the SSE rendition of the stream, for clients that
// can't open a websocket.
func (p *RadioPlugin) handleEvents(c *fiber.Ctx) error {
	// EventSource can't set headers, so the token comes as a query parameter
	if !p.authorized(c.Query("token")) {
		return c.Status(401).JSON(APIResponse{
			Success: false,
			Error:   "Unauthorized",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	id, events := p.hub.subscribe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer p.hub.unsubscribe(id)
		writeEvents(w, events, sseHeartbeat)
	})
	return nil
}

// writeEvents copies events to w in SSE framing until the channel closes
// or a write fails. A comment line goes out every heartbeat.
func writeEvents(w *bufio.Writer, events <-chan Event, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// Register the plugin
func init() {
	Register("radio", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(RadioConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for radio plugin: expected RadioConfig")
		}
		return NewRadioPlugin(cfg)
	})
}
