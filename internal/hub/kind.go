package hub

import "fmt"

// Every LEGO hub exposes one UART-like service with a single characteristic
// used for both directions.
const (
	UARTServiceUUID = "00001623-1212-efde-1623-785feabcd123"
	UARTCharUUID    = "00001624-1212-efde-1623-785feabcd123"
)

// Kind identifies a hub model by the name and manufacturer id it advertises.
type Kind struct {
	Name           string // declaration name used in config
	BLEName        string // advertised local name
	ManufacturerID byte
}

var (
	PoweredUp          = Kind{Name: "poweredup", BLEName: "HUB NO.4", ManufacturerID: 65}
	PoweredUpRemote    = Kind{Name: "poweredup_remote", BLEName: "Handset", ManufacturerID: 66}
	Boost              = Kind{Name: "boost", BLEName: "LEGO Move Hub", ManufacturerID: 64}
	DuploTrain         = Kind{Name: "duplo_train", BLEName: "Train Base", ManufacturerID: 32}
	TechnicControlPlus = Kind{Name: "technic_control_plus", BLEName: "Control+ Hub", ManufacturerID: 128}
)

var kinds = map[string]Kind{
	PoweredUp.Name:          PoweredUp,
	PoweredUpRemote.Name:    PoweredUpRemote,
	Boost.Name:              Boost,
	DuploTrain.Name:         DuploTrain,
	TechnicControlPlus.Name: TechnicControlPlus,
}

// KindByName resolves a config kind string.
func KindByName(name string) (Kind, error) {
	k, ok := kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("hub: unknown hub kind %q", name)
	}
	return k, nil
}

// Registry tracks the hubs owned by one orchestrator. Hubs register
// explicitly; there is no package-level instance list.
type Registry struct {
	hubs   []*Hub
	byName map[string]*Hub
}

// NewRegistry returns an empty hub registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Hub)}
}

// Add registers a hub under its name.
func (r *Registry) Add(h *Hub) error {
	if _, ok := r.byName[h.Name()]; ok {
		return fmt.Errorf("hub: duplicate hub name %q", h.Name())
	}
	r.byName[h.Name()] = h
	r.hubs = append(r.hubs, h)
	return nil
}

// Hub looks up a registered hub by name.
func (r *Registry) Hub(name string) (*Hub, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// Hubs returns registered hubs in registration order.
func (r *Registry) Hubs() []*Hub {
	return r.hubs
}
