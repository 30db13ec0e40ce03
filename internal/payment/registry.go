package payment

import (
	"net/http"
	"sort"
	"strings"

	"av-rental/internal/model"
)

// Registry holds the configured gateways.
type Registry struct {
	gateways    map[string]Gateway
	defaultName string
}

// NewRegistry builds a registry. defaultName is used when a request does not
// name a provider; it falls back to the only gateway when unset.
func NewRegistry(defaultName string, gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways)), defaultName: strings.ToLower(defaultName)}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	if _, ok := r.gateways[r.defaultName]; !ok && len(gateways) > 0 {
		r.defaultName = gateways[0].Name()
	}
	return r
}

// Get returns the named gateway, or the default for an empty name.
func (r *Registry) Get(name string) (Gateway, error) {
	if name == "" {
		name = r.defaultName
	}
	g, ok := r.gateways[strings.ToLower(name)]
	if !ok {
		return nil, model.ErrUnknownProvider
	}
	return g, nil
}

// Default returns the name of the default gateway.
func (r *Registry) Default() string {
	return r.defaultName
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect picks the gateway whose signature header is present.
func (r *Registry) Detect(h http.Header) (Gateway, error) {
	for _, name := range r.Names() {
		g := r.gateways[name]
		if h.Get(g.SignatureHeader()) != "" {
			return g, nil
		}
	}
	return nil, model.ErrUnknownProvider
}
