package gateway

import "fmt"

// Registry maps gateway codes to adapters. Adding a provider means
// registering one adapter here; the reconciliation path never switches on
// provider names.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

// DefaultRegistry carries every supported provider.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Stripe{},
		PayPal{},
		Lygos{},
		Monetbill{},
		TaraMoney{},
		Callback{},
	)
}

func (r *Registry) Lookup(code string) (Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("unsupported gateway %q", code)
	}
	return a, nil
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	return codes
}
