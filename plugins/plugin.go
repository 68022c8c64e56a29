package plugins

import (
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Plugin is one feature of the manager, mounted on the shared fiber app.
type Plugin interface {
	// Name returns the plugin identifier
	Name() string

	// RegisterRoutes adds the plugin's HTTP routes to the app
	RegisterRoutes(app *fiber.App)

	// Shutdown releases hardware and stops background work
	Shutdown() error
}

// PluginFactory creates a plugin from its section of config.yaml. The
// concrete config type is the factory's business.
type PluginFactory func(config interface{}) (Plugin, error)

// TokenValidator reports whether an auth token is valid.
type TokenValidator func(token string) bool

// TokenAware is implemented by plugins with routes that must check
// tokens themselves, such as streams opened by EventSource.
type TokenAware interface {
	SetTokenValidator(validator TokenValidator)
}

var registry = make(map[string]PluginFactory)

// Register adds a plugin factory to the registry. Registering a name
// twice panics.
func Register(name string, factory PluginFactory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("plugins: %s registered twice", name))
	}
	registry[name] = factory
}

// Get retrieves a plugin factory by name
func Get(name string) (PluginFactory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// Names lists the registered plugins, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
