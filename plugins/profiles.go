package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	"github.com/linht/nrf24-manager/nrf24"
)

// ErrProfileNotFound is returned for names missing from the profile file.
var ErrProfileNotFound = errors.New("profile not found")

// OrderedMap is a JSON object that keeps the key order of the YAML it
// came from.
type OrderedMap struct {
	Keys   []string
	Values map[string]interface{}
}

// MarshalJSON writes the keys in order.
func (om *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, key := range om.Keys {
		if i > 0 {
			buf.WriteString(",")
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteString(":")
		valBytes, err := json.Marshal(om.Values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// yamlNodeToOrderedJSON converts a yaml.Node to values encoding/json
// writes in document order.
func yamlNodeToOrderedJSON(node *yaml.Node) interface{} {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) > 0 {
			return yamlNodeToOrderedJSON(node.Content[0])
		}
		return nil

	case yaml.MappingNode:
		om := &OrderedMap{
			Keys:   make([]string, 0, len(node.Content)/2),
			Values: make(map[string]interface{}),
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			om.Keys = append(om.Keys, key)
			om.Values[key] = yamlNodeToOrderedJSON(node.Content[i+1])
		}
		return om

	case yaml.SequenceNode:
		result := make([]interface{}, len(node.Content))
		for i, item := range node.Content {
			result[i] = yamlNodeToOrderedJSON(item)
		}
		return result

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil
		case "!!bool":
			var v bool
			if err := node.Decode(&v); err == nil {
				return v
			}
			return node.Value
		case "!!int":
			var v int64
			if err := node.Decode(&v); err == nil {
				return v
			}
			return node.Value
		case "!!float":
			var v float64
			if err := node.Decode(&v); err == nil {
				return v
			}
			return node.Value
		default:
			return node.Value
		}

	case yaml.AliasNode:
		if node.Alias != nil {
			return yamlNodeToOrderedJSON(node.Alias)
		}
		return nil

	default:
		return node.Value
	}
}

// mergeYAMLNode writes values into the existing keys of a mapping node.
// Keys the node doesn't have are ignored, so a merge never changes the
// shape of a stored profile.
func mergeYAMLNode(node *yaml.Node, values map[string]interface{}) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) > 0 {
			mergeYAMLNode(node.Content[0], values)
		}
		return
	}
	if node.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		newValue, ok := values[node.Content[i].Value]
		if !ok {
			continue
		}

		valueNode := node.Content[i+1]
		switch v := newValue.(type) {
		case map[string]interface{}:
			if valueNode.Kind == yaml.MappingNode {
				mergeYAMLNode(valueNode, v)
			} else {
				*valueNode = *newYAMLNode(v)
			}
		case []interface{}:
			valueNode.Kind = yaml.SequenceNode
			valueNode.Tag = ""
			valueNode.Value = ""
			valueNode.Content = nil
			for _, item := range v {
				valueNode.Content = append(valueNode.Content, newYAMLNode(item))
			}
		default:
			setScalarNode(valueNode, v)
		}
	}
}

// newYAMLNode builds a node for a value decoded from JSON. Mapping keys
// are left untagged so that pipe numbers resolve as integers.
func newYAMLNode(value interface{}) *yaml.Node {
	switch v := value.(type) {
	case map[string]interface{}:
		node := &yaml.Node{Kind: yaml.MappingNode}
		for key, val := range v {
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				newYAMLNode(val))
		}
		return node

	case []interface{}:
		node := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range v {
			node.Content = append(node.Content, newYAMLNode(item))
		}
		return node

	default:
		node := &yaml.Node{}
		setScalarNode(node, v)
		return node
	}
}

// setScalarNode turns node into a scalar holding value.
func setScalarNode(node *yaml.Node, value interface{}) {
	node.Kind = yaml.ScalarNode
	node.Content = nil
	node.Style = 0

	switch v := value.(type) {
	case string:
		node.Value = v
		node.Tag = "!!str"
	case bool:
		node.Value = fmt.Sprintf("%t", v)
		node.Tag = "!!bool"
	case float64:
		if v == float64(int64(v)) {
			node.Value = fmt.Sprintf("%d", int64(v))
			node.Tag = "!!int"
		} else {
			node.Value = fmt.Sprintf("%g", v)
			node.Tag = "!!float"
		}
	case int64:
		node.Value = fmt.Sprintf("%d", v)
		node.Tag = "!!int"
	case int:
		node.Value = fmt.Sprintf("%d", v)
		node.Tag = "!!int"
	case nil:
		node.Value = "null"
		node.Tag = "!!null"
	default:
		node.Value = fmt.Sprintf("%v", v)
		node.Tag = ""
	}
}

// ProfileStore keeps named radio profiles in one YAML file, a mapping of
// name to profile. Edits go through yaml.Node so that key order and
// comments of the file survive.
type ProfileStore struct {
	mu   sync.Mutex
	path string
}

// NewProfileStore returns a store on path. The file need not exist yet.
func NewProfileStore(path string) (*ProfileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("profiles_path is required")
	}
	return &ProfileStore{path: path}, nil
}

// load reads the file. It returns the document and its top level
// mapping; a missing or empty file is an empty mapping.
func (s *ProfileStore) load() (*yaml.Node, *yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	empty := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return empty, root, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return empty, root, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("profiles file %s is not a mapping", s.path)
	}
	return &doc, doc.Content[0], nil
}

// write marshals the whole document so that its comments survive.
func (s *ProfileStore) write(doc *yaml.Node) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

func lookup(root *yaml.Node, name string) (int, *yaml.Node) {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == name {
			return i, root.Content[i+1]
		}
	}
	return -1, nil
}

func decodeProfile(name string, node *yaml.Node) (nrf24.Profile, error) {
	var p nrf24.Profile
	if err := node.Decode(&p); err != nil {
		return p, fmt.Errorf("profile %s: %w", name, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", name, err)
	}
	return p, nil
}

// Names lists the profiles in file order.
func (s *ProfileStore) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, root, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		names = append(names, root.Content[i].Value)
	}
	return names, nil
}

// Load decodes and validates the named profile.
func (s *ProfileStore) Load(name string) (nrf24.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, root, err := s.load()
	if err != nil {
		return nrf24.Profile{}, err
	}
	_, node := lookup(root, name)
	if node == nil {
		return nrf24.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return decodeProfile(name, node)
}

// Document returns the named profile as written in the file.
func (s *ProfileStore) Document(name string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, root, err := s.load()
	if err != nil {
		return nil, err
	}
	_, node := lookup(root, name)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return yamlNodeToOrderedJSON(node), nil
}

// Save validates p and stores it under name, replacing an existing
// entry in place.
func (s *ProfileStore) Save(name string, p nrf24.Profile) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	var node yaml.Node
	if err := node.Encode(&p); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, root, err := s.load()
	if err != nil {
		return err
	}
	if i, _ := lookup(root, name); i >= 0 {
		root.Content[i+1] = &node
	} else {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&node)
	}
	return s.write(doc)
}

// Merge writes values into the existing fields of the named profile. The
// result must still validate.
func (s *ProfileStore) Merge(name string, values map[string]interface{}) (nrf24.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, root, err := s.load()
	if err != nil {
		return nrf24.Profile{}, err
	}
	_, node := lookup(root, name)
	if node == nil {
		return nrf24.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	mergeYAMLNode(node, values)
	p, err := decodeProfile(name, node)
	if err != nil {
		return p, err
	}
	return p, s.write(doc)
}

// Delete removes the named profile.
func (s *ProfileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, root, err := s.load()
	if err != nil {
		return err
	}
	i, _ := lookup(root, name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	root.Content = append(root.Content[:i], root.Content[i+2:]...)
	return s.write(doc)
}

// ProfilesPlugin edits the profile file over HTTP.
type ProfilesPlugin struct {
	store *ProfileStore
}

// NewProfilesPlugin creates a new profiles plugin instance
func NewProfilesPlugin(store *ProfileStore) *ProfilesPlugin {
	return &ProfilesPlugin{store: store}
}

// Name returns the plugin identifier
func (p *ProfilesPlugin) Name() string {
	return "profiles"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *ProfilesPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/profiles")

	api.Get("/", p.handleList)
	api.Get("/:name", p.handleGet)
	api.Put("/:name", p.handlePut)
	api.Patch("/:name", p.handlePatch)
	api.Delete("/:name", p.handleDelete)
}

// Shutdown performs cleanup
func (p *ProfilesPlugin) Shutdown() error {
	return nil
}

func profileStatus(err error) int {
	if errors.Is(err, ErrProfileNotFound) {
		return 404
	}
	return 500
}

func (p *ProfilesPlugin) handleList(c *fiber.Ctx) error {
	names, err := p.store.Names()
	if err != nil {
		return SendError(c, 500, err)
	}
	return SendSuccess(c, fiber.Map{
		"profiles": names,
		"count":    len(names),
	}, "")
}

func (p *ProfilesPlugin) handleGet(c *fiber.Ctx) error {
	doc, err := p.store.Document(c.Params("name"))
	if err != nil {
		return SendError(c, profileStatus(err), err)
	}
	return SendSuccess(c, doc, "")
}

func (p *ProfilesPlugin) handlePut(c *fiber.Ctx) error {
	var profile nrf24.Profile
	if err := json.Unmarshal(c.Body(), &profile); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	if err := profile.Validate(); err != nil {
		return SendError(c, 400, err)
	}

	name := c.Params("name")
	if err := p.store.Save(name, profile); err != nil {
		return SendError(c, 500, err)
	}

	slog.Info("Profile saved", "name", name)
	return SendSuccess(c, profile, "Profile saved successfully")
}

func (p *ProfilesPlugin) handlePatch(c *fiber.Ctx) error {
	var values map[string]interface{}
	if err := json.Unmarshal(c.Body(), &values); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	name := c.Params("name")
	profile, err := p.store.Merge(name, values)
	if err != nil {
		status := profileStatus(err)
		if status == 500 {
			status = 400
		}
		return SendError(c, status, err)
	}

	slog.Info("Profile updated", "name", name, "fields", len(values))
	return SendSuccess(c, profile, "Profile updated successfully")
}

func (p *ProfilesPlugin) handleDelete(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := p.store.Delete(name); err != nil {
		return SendError(c, profileStatus(err), err)
	}

	slog.Info("Profile deleted", "name", name)
	return SendSuccess(c, nil, "Profile deleted")
}

// Register the plugin
func init() {
	Register("profiles", func(config interface{}) (Plugin, error) {
		path, ok := config.(string)
		if !ok {
			return nil, fmt.Errorf("invalid config for profiles plugin: expected profiles file path")
		}
		store, err := NewProfileStore(path)
		if err != nil {
			return nil, err
		}
		return NewProfilesPlugin(store), nil
	})
}
